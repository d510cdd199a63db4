// Package pipeline wires the poller, the bounded queue and the write workers
// into one supervised unit.
package pipeline

import (
	"context"

	"github.com/user/ghevents/internal/storage"
)

// Queue is a fixed-capacity FIFO of event batches. Put blocks when the queue
// is full, which is the pipeline's backpressure point; Get blocks when it is
// empty. The element is a whole batch, not a single record.
type Queue struct {
	ch chan []storage.Event
}

// NewQueue creates a queue with the given batch capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan []storage.Event, capacity)}
}

// Put enqueues one batch, suspending the caller while the queue is full.
// It returns the context error when canceled while waiting.
func (q *Queue) Put(ctx context.Context, batch []storage.Event) error {
	select {
	case q.ch <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues one batch, suspending the caller while the queue is empty.
// ok reports false once the queue is closed and drained.
func (q *Queue) Get() (batch []storage.Event, ok bool) {
	batch, ok = <-q.ch
	return batch, ok
}

// Len returns the number of pending batches.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting batches. Consumers keep draining what is already
// queued; only the producer may call Close.
func (q *Queue) Close() {
	close(q.ch)
}
