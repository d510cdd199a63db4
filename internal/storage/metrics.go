package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MetricsStore handles the read side: filtered and aggregated queries over the
// events table. Filters on repository name and action are lowercased to match
// the write-time normalization.
type MetricsStore struct {
	db *Database
}

// NewMetricsStore creates a new metrics store.
func NewMetricsStore(db *Database) *MetricsStore {
	return &MetricsStore{db: db}
}

// EventsByType returns events of one kind ordered by creation time.
// repositoryName and action are optional filters; empty means no filter.
func (s *MetricsStore) EventsByType(ctx context.Context, kind EventKind, repositoryName, action string) ([]Event, error) {
	where := []string{"event_type = ?"}
	args := []any{kind}

	if repositoryName != "" {
		where = append(where, "repository_name = ?")
		args = append(args, strings.ToLower(repositoryName))
	}
	if action != "" {
		where = append(where, "action = ?")
		args = append(args, strings.ToLower(action))
	}

	query := s.db.Rebind(`
		SELECT * FROM events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at ASC
	`)

	var events []Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events by type: %w", err)
	}
	return events, nil
}

// CountsByTypeSince returns per-kind event counts for events created at or
// after the cutoff.
func (s *MetricsStore) CountsByTypeSince(ctx context.Context, since time.Time, repositoryName, action string) ([]TypeCount, error) {
	where := []string{"created_at >= ?"}
	args := []any{since}

	if repositoryName != "" {
		where = append(where, "repository_name = ?")
		args = append(args, strings.ToLower(repositoryName))
	}
	if action != "" {
		where = append(where, "action = ?")
		args = append(args, strings.ToLower(action))
	}

	query := s.db.Rebind(`
		SELECT event_type, COUNT(*) AS count FROM events
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY event_type
	`)

	var counts []TypeCount
	if err := s.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query grouped counts: %w", err)
	}
	return counts, nil
}

// OldestEventSince returns the earliest event created at or after the cutoff,
// or nil when the window is empty.
func (s *MetricsStore) OldestEventSince(ctx context.Context, since time.Time) (*Event, error) {
	query := s.db.Rebind(`
		SELECT * FROM events
		WHERE created_at >= ?
		ORDER BY created_at ASC
		LIMIT 1
	`)

	var e Event
	err := s.db.GetContext(ctx, &e, query, since)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query oldest event: %w", err)
	}
	return &e, nil
}

// RepositoriesWithEvents returns repositories having at least minEvents events
// of the given kind, most active first.
func (s *MetricsStore) RepositoriesWithEvents(ctx context.Context, kind EventKind, minEvents int) ([]RepoCount, error) {
	if minEvents < 1 {
		minEvents = 1
	}

	query := s.db.Rebind(`
		SELECT repository_name, COUNT(*) AS count FROM events
		WHERE event_type = ?
		GROUP BY repository_name
		HAVING COUNT(*) >= ?
		ORDER BY count DESC, repository_name ASC
	`)

	var repos []RepoCount
	if err := s.db.SelectContext(ctx, &repos, query, kind, minEvents); err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	return repos, nil
}
