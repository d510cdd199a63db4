package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/ghevents/internal/storage"
)

// fakeWriter implements EventWriter with a per-call hook.
type fakeWriter struct {
	mu       sync.Mutex
	calls    int
	inserted [][]storage.Event
	fn       func(call int, batch []storage.Event) (int, error)
}

func (f *fakeWriter) InsertEvents(ctx context.Context, batch []storage.Event) (int, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	n, err := f.fn(call, batch)
	if err == nil {
		f.mu.Lock()
		f.inserted = append(f.inserted, batch)
		f.mu.Unlock()
	}
	return n, err
}

// A failing batch is dropped; the worker keeps going and the next batch lands.
func TestWorkerPool_IsolatesFailingBatch(t *testing.T) {
	writer := &fakeWriter{
		fn: func(call int, batch []storage.Event) (int, error) {
			if call == 1 {
				return 0, errors.New("store unavailable")
			}
			return len(batch), nil
		},
	}

	q := NewQueue(2)
	pool := NewWorkerPool(writer, q, 1)
	pool.Start()

	if err := q.Put(context.Background(), batchOf(1, 2)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := q.Put(context.Background(), batchOf(3)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Wait()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not drain")
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.calls != 2 {
		t.Fatalf("expected 2 write attempts, got %d", writer.calls)
	}
	if len(writer.inserted) != 1 || writer.inserted[0][0].EventID != 3 {
		t.Fatalf("expected only the valid batch to land, got %+v", writer.inserted)
	}
}

// A duplicate-count mismatch is informational, never fatal.
func TestWorkerPool_ToleratesDuplicateMismatch(t *testing.T) {
	writer := &fakeWriter{
		fn: func(call int, batch []storage.Event) (int, error) {
			return len(batch) - 1, nil // one duplicate skipped by the store
		},
	}

	q := NewQueue(2)
	pool := NewWorkerPool(writer, q, 2)
	pool.Start()

	if err := q.Put(context.Background(), batchOf(1, 2)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := q.Put(context.Background(), batchOf(3, 4)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	q.Close()
	pool.Wait()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.inserted) != 2 {
		t.Fatalf("expected both batches processed, got %d", len(writer.inserted))
	}
}

// Stop must let queued batches drain before the workers return.
func TestPipeline_DrainsOnStop(t *testing.T) {
	writer := &fakeWriter{
		fn: func(call int, batch []storage.Event) (int, error) {
			return len(batch), nil
		},
	}

	q := NewQueue(4)
	pipe := New(q, producerFunc(func(ctx context.Context) {
		for i := int64(1); i <= 3; i++ {
			if err := q.Put(ctx, batchOf(i)); err != nil {
				return
			}
		}
		<-ctx.Done()
	}), writer, 2)

	pipe.Start()
	time.Sleep(20 * time.Millisecond) // let the producer enqueue
	pipe.Stop()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.inserted) != 3 {
		t.Fatalf("expected all 3 batches drained, got %d", len(writer.inserted))
	}
}

type producerFunc func(ctx context.Context)

func (f producerFunc) Run(ctx context.Context) { f(ctx) }
