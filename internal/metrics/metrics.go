// Package metrics computes aggregate metrics over the persisted events.
package metrics

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/user/ghevents/internal/storage"
	"github.com/user/ghevents/pkg/logger"
)

// ErrNotEnoughData is returned when the stored events cannot support the
// requested calculation (for example fewer than two events for an average).
var ErrNotEnoughData = errors.New("not enough data to calculate metric")

// Store is the read capability the controller needs.
type Store interface {
	EventsByType(ctx context.Context, kind storage.EventKind, repositoryName, action string) ([]storage.Event, error)
	CountsByTypeSince(ctx context.Context, since time.Time, repositoryName, action string) ([]storage.TypeCount, error)
	OldestEventSince(ctx context.Context, since time.Time) (*storage.Event, error)
	RepositoriesWithEvents(ctx context.Context, kind storage.EventKind, minEvents int) ([]storage.RepoCount, error)
}

// Controller turns store reads into metric results.
type Controller struct {
	store Store
}

// NewController creates a metrics controller.
func NewController(store Store) *Controller {
	return &Controller{store: store}
}

// AvgTimeResult reports the average gap between adjacent events of one kind.
type AvgTimeResult struct {
	EventType       storage.EventKind `json:"event_type"`
	RepositoryName  string            `json:"repository_name"`
	EventsCount     int               `json:"events_count"`
	OldestEventTime time.Time         `json:"oldest_event_time"`
	AvgSeconds      float64           `json:"avg_time"`
}

// AvgTimeBetweenEvents computes the mean number of seconds between adjacent
// events of the given kind, optionally filtered by repository and action.
// Fewer than two matching events cannot form a pair and yield ErrNotEnoughData.
func (c *Controller) AvgTimeBetweenEvents(ctx context.Context, kind storage.EventKind, repositoryName, action string) (*AvgTimeResult, error) {
	events, err := c.store.EventsByType(ctx, kind, repositoryName, action)
	if err != nil {
		return nil, err
	}
	if len(events) < 2 {
		logger.Warn().
			Str("event_type", string(kind)).
			Str("repository_name", repositoryName).
			Str("action", action).
			Msg("No data to calculate metric")
		return nil, ErrNotEnoughData
	}

	diffs := TimeDiffs(events)
	var total float64
	for _, d := range diffs {
		total += d
	}
	avg := total / float64(len(diffs))

	name := repositoryName
	if name == "" {
		name = "all"
	}

	return &AvgTimeResult{
		EventType:       kind,
		RepositoryName:  name,
		EventsCount:     len(events),
		OldestEventTime: events[0].CreatedAt,
		AvgSeconds:      math.Round(avg*100) / 100,
	}, nil
}

// TimeDiffs returns the gap in seconds between each pair of adjacent events.
// The input must already be sorted by creation time.
func TimeDiffs(events []storage.Event) []float64 {
	if len(events) < 2 {
		return nil
	}
	diffs := make([]float64, 0, len(events)-1)
	for i := 0; i+1 < len(events); i++ {
		diffs = append(diffs, events[i+1].CreatedAt.Sub(events[i].CreatedAt).Seconds())
	}
	return diffs
}

// GroupedCounts breaks the total down by event kind.
type GroupedCounts struct {
	WatchEvent       int64 `json:"watch_event"`
	PullRequestEvent int64 `json:"pr_event"`
	IssuesEvent      int64 `json:"issue_event"`
	Total            int64 `json:"total"`
}

// TotalCountResult reports event counts within a trailing window.
type TotalCountResult struct {
	RepositoryName  string        `json:"repository_name"`
	OldestEventTime *time.Time    `json:"oldest_event_time"`
	EventsCount     GroupedCounts `json:"events_count"`
}

// TotalEventCounts counts events created within the last offset seconds,
// grouped by kind. The count may lag slightly behind the live feed while the
// poller is inserting.
func (c *Controller) TotalEventCounts(ctx context.Context, offsetSeconds int, repositoryName, action string) (*TotalCountResult, error) {
	since := time.Now().UTC().Add(-time.Duration(offsetSeconds) * time.Second)

	grouped, err := c.store.CountsByTypeSince(ctx, since, repositoryName, action)
	if err != nil {
		return nil, err
	}

	oldest, err := c.store.OldestEventSince(ctx, since)
	if err != nil {
		return nil, err
	}

	res := &TotalCountResult{RepositoryName: repositoryName}
	if res.RepositoryName == "" {
		res.RepositoryName = "all"
	}
	if oldest != nil {
		t := oldest.CreatedAt
		res.OldestEventTime = &t
	}

	for _, g := range grouped {
		switch g.EventType {
		case storage.KindWatch:
			res.EventsCount.WatchEvent = g.Count
		case storage.KindPullRequest:
			res.EventsCount.PullRequestEvent = g.Count
		case storage.KindIssues:
			res.EventsCount.IssuesEvent = g.Count
		}
		res.EventsCount.Total += g.Count
	}

	return res, nil
}

// ActiveRepositoriesResult lists repositories with repeated events of a kind.
type ActiveRepositoriesResult struct {
	EventType    storage.EventKind `json:"event_type"`
	Repositories map[string]int64  `json:"repositories"`
}

// ActiveRepositories returns repositories having at least minEvents events of
// the given kind.
func (c *Controller) ActiveRepositories(ctx context.Context, kind storage.EventKind, minEvents int) (*ActiveRepositoriesResult, error) {
	repos, err := c.store.RepositoriesWithEvents(ctx, kind, minEvents)
	if err != nil {
		return nil, err
	}

	res := &ActiveRepositoriesResult{
		EventType:    kind,
		Repositories: make(map[string]int64, len(repos)),
	}
	for _, r := range repos {
		res.Repositories[r.RepositoryName] = r.Count
	}
	return res, nil
}
