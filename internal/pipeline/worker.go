package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/ghevents/internal/storage"
	"github.com/user/ghevents/pkg/logger"
)

// EventWriter is the store capability the workers need: one deduplicated bulk
// insert returning how many rows were newly written.
type EventWriter interface {
	InsertEvents(ctx context.Context, batch []storage.Event) (int, error)
}

// WorkerPool drains the queue with N independent workers. Any worker may
// handle any batch; the ordinal is for log correlation only.
type WorkerPool struct {
	store EventWriter
	queue *Queue
	count int
	wg    sync.WaitGroup
}

// NewWorkerPool creates a pool of count workers reading from queue.
func NewWorkerPool(store EventWriter, queue *Queue, count int) *WorkerPool {
	return &WorkerPool{
		store: store,
		queue: queue,
		count: count,
	}
}

// Start launches the workers. They run until the queue is closed and drained.
func (p *WorkerPool) Start() {
	for i := 1; i <= p.count; i++ {
		p.wg.Add(1)
		go p.run(fmt.Sprintf("worker-%d", i))
	}
	logger.Info().Int("workers", p.count).Msg("Worker pool started")
}

// Wait blocks until every worker has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// run is one worker loop. A failed write drops that batch and moves on: the
// pipeline favors liveness over completeness, and the loss stays observable
// through the error log.
func (p *WorkerPool) run(name string) {
	defer p.wg.Done()

	log := logger.WithField("worker", name)

	for {
		batch, ok := p.queue.Get()
		if !ok {
			log.Debug().Msg("Queue drained, worker exiting")
			return
		}

		inserted, err := p.store.InsertEvents(context.Background(), batch)
		if err != nil {
			log.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to insert batch, dropping it")
			continue
		}

		if inserted != len(batch) {
			// Expected under at-least-once fetching: the overlap was
			// already stored by an earlier cycle.
			log.Warn().
				Int("batch_size", len(batch)).
				Int("inserted", inserted).
				Int("duplicates", len(batch)-inserted).
				Msg("Batch contained already-stored events")
		} else {
			log.Debug().Int("inserted", inserted).Msg("Batch stored")
		}
	}
}
