package pipeline

import (
	"context"

	"github.com/user/ghevents/pkg/logger"
)

// Producer is the polling task feeding the queue. Run must return once the
// context is canceled.
type Producer interface {
	Run(ctx context.Context)
}

// Pipeline supervises the producer, the queue and the worker pool. Shutdown
// is drain-then-close: stop fetching, let workers consume what is queued,
// then return so the caller can release the store.
type Pipeline struct {
	queue    *Queue
	producer Producer
	pool     *WorkerPool

	cancel       context.CancelFunc
	producerDone chan struct{}
}

// New wires a pipeline. The queue is owned by the pipeline from here on.
func New(queue *Queue, producer Producer, store EventWriter, workers int) *Pipeline {
	return &Pipeline{
		queue:    queue,
		producer: producer,
		pool:     NewWorkerPool(store, queue, workers),
	}
}

// Start launches the producer task and the worker pool.
func (p *Pipeline) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.producerDone = make(chan struct{})

	go func() {
		defer close(p.producerDone)
		p.producer.Run(ctx)
	}()

	p.pool.Start()
}

// Stop cancels the producer, waits for it, closes the queue and waits for the
// workers to drain the remaining batches.
func (p *Pipeline) Stop() {
	logger.Info().Msg("Stopping pipeline")

	p.cancel()
	<-p.producerDone

	pending := p.queue.Len()
	if pending > 0 {
		logger.Info().Int("pending_batches", pending).Msg("Draining queue")
	}

	p.queue.Close()
	p.pool.Wait()

	logger.Info().Msg("Pipeline stopped")
}
