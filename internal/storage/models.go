// Package storage provides database operations and data models.
package storage

import "time"

// EventKind is the closed set of upstream event types this pipeline records.
type EventKind string

const (
	KindWatch       EventKind = "WatchEvent"
	KindPullRequest EventKind = "PullRequestEvent"
	KindIssues      EventKind = "IssuesEvent"
)

// AllEventKinds returns every recognized event kind.
func AllEventKinds() []EventKind {
	return []EventKind{
		KindWatch,
		KindPullRequest,
		KindIssues,
	}
}

// ParseEventKind maps an upstream type string onto the recognized enumeration.
// Unknown kinds report false so callers can skip them.
func ParseEventKind(s string) (EventKind, bool) {
	switch EventKind(s) {
	case KindWatch, KindPullRequest, KindIssues:
		return EventKind(s), true
	}
	return "", false
}

// Event is one record from the upstream feed. EventID is the upstream's own
// identifier and the deduplication key; ID and InsertedAt are store-assigned.
type Event struct {
	ID             int64     `db:"id"`
	EventID        int64     `db:"event_id"`
	EventType      EventKind `db:"event_type"`
	ActorID        int64     `db:"actor_id"`
	RepositoryID   int64     `db:"repository_id"`
	RepositoryName string    `db:"repository_name"`
	CreatedAt      time.Time `db:"created_at"`
	Action         string    `db:"action"`
	InsertedAt     time.Time `db:"inserted_at"`
}

// TypeCount is one row of a per-kind aggregation.
type TypeCount struct {
	EventType EventKind `db:"event_type"`
	Count     int64     `db:"count"`
}

// RepoCount is one row of a per-repository aggregation.
type RepoCount struct {
	RepositoryName string `db:"repository_name"`
	Count          int64  `db:"count"`
}
