package orchestrate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"demogen/internal/crm"
	"demogen/internal/runlog"
)

// runPool fans opps out to min(Concurrency, len(opps)) workers and returns
// how many were started. Each worker builds its own client on its first
// candidate and keeps it for its lifetime.
func (r *Runner) runPool(ctx context.Context, opps []crm.Opportunity) int {
	workers := min(r.opts.Concurrency, len(opps))
	jobs := make(chan crm.Opportunity)
	work := context.WithoutCancel(ctx)
	var started atomic.Int64

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for _, opp := range opps {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case jobs <- opp:
				started.Add(1)
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := range workers {
		g.Go(func() error {
			r.worker(work, w, jobs)
			return nil
		})
	}

	_ = g.Wait() // per-candidate errors are recorded in the sink
	r.logger.Debug("worker pool drained", "workers", workers, "started", started.Load())
	return int(started.Load())
}

func (r *Runner) worker(ctx context.Context, id int, jobs <-chan crm.Opportunity) {
	logger := r.logger.With("worker", id)
	var client crm.Client
	for opp := range jobs {
		if client == nil {
			c, err := r.newClient(ctx)
			if err != nil {
				// The candidate is abandoned; the next one retries setup.
				logger.Error("client setup failed", "opportunity_id", opp.ID, "error", err)
				r.opts.Sink.Error(runlog.ErrorEntry{
					Stage:         StageClientSetup,
					Err:           err,
					OpportunityID: opp.ID,
					Retryable:     crm.IsRetryable(err),
				})
				continue
			}
			client = c
			logger.Debug("worker client ready")
		}
		r.process(ctx, client, opp)
	}
}
