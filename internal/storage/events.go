package storage

import (
	"context"
	"fmt"
)

// EventStore handles event write operations. Duplicate external ids are
// skipped at the statement level, so both operations stay safe under
// concurrent callers against the same table.
type EventStore struct {
	db *Database
}

// NewEventStore creates a new event store.
func NewEventStore(db *Database) *EventStore {
	return &EventStore{db: db}
}

const insertEventQuery = `
	INSERT INTO events (event_id, event_type, actor_id, repository_id, repository_name, created_at, action)
	VALUES (:event_id, :event_type, :actor_id, :repository_id, :repository_name, :created_at, :action)
	ON CONFLICT (event_id) DO NOTHING
`

// InsertEvent stores a single event. An already-present event id is not an
// error: the insert is skipped and created reports false.
func (s *EventStore) InsertEvent(ctx context.Context, e Event) (created bool, err error) {
	res, err := s.db.NamedExecContext(ctx, insertEventQuery, e)
	if err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// InsertEvents stores a batch in one statement, skipping rows whose event id
// already exists, and returns how many rows were newly written. Callers
// compare the count to the batch size to detect duplicates.
func (s *EventStore) InsertEvents(ctx context.Context, batch []Event) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	res, err := s.db.NamedExecContext(ctx, insertEventQuery, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event batch: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(rows), nil
}
