package github

import (
	"context"
	"errors"
	"time"

	"github.com/user/ghevents/internal/pipeline"
	"github.com/user/ghevents/pkg/logger"
)

// Poller drives the fetch/parse/enqueue loop against the events feed. It is
// the only producer for the queue; backpressure suspends it when the workers
// fall behind.
//
// The loop follows pagination links back-to-back while quota allows. Whenever
// it sleeps (rate limited or no further pages) it restarts from the base
// endpoint, never resuming a stale pagination pointer.
type Poller struct {
	client *Client
	policy Policy
	queue  *pipeline.Queue
}

// NewPoller creates a new feed poller.
func NewPoller(client *Client, policy Policy, queue *pipeline.Queue) *Poller {
	return &Poller{
		client: client,
		policy: policy,
		queue:  queue,
	}
}

// Run polls until the context is canceled or an unrecoverable fault occurs.
// Upstream non-2xx responses are tolerated as empty pages; transport or
// payload-level failures end this task only, leaving queued batches and
// workers untouched. A dead poller is not restarted here: that failure mode
// points at a defect, and restarting is left to process supervision.
func (p *Poller) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Poller died")
		}
	}()

	logger.Info().
		Dur("base_interval", p.policy.BaseInterval).
		Msg("Poller started")

	target := "" // base endpoint

	for {
		if ctx.Err() != nil {
			return
		}

		page, err := p.client.FetchPage(ctx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("Poller died: unrecoverable fetch error")
			return
		}

		if !page.OK() {
			logger.Warn().Int("status", page.Status).Msg("Upstream returned non-2xx, treating as empty page")
		} else {
			logger.Debug().Int("events", len(page.Events)).Msg("Fetched events page")
		}

		if len(page.Events) > 0 {
			if err := p.queue.Put(ctx, page.Events); err != nil {
				return
			}
		}

		decision := p.policy.Decide(page.Header, time.Now())

		if decision.RateLimited || decision.Next == "" {
			if decision.RateLimited {
				logger.Warn().Dur("sleep", decision.Sleep).Msg("Rate limited by upstream")
			}
			target = ""
			select {
			case <-ctx.Done():
				return
			case <-time.After(decision.Sleep):
			}
			continue
		}

		// Quota allows: fetch the next page immediately.
		target = decision.Next
	}
}
