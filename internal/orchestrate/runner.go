// Package orchestrate drives a demogen run: it selects candidate
// opportunities, applies each one's planned meetings, emails and scorecards
// through the CRM client, and records progress in the ledger and run log.
//
// Candidates are independent. A failure on one item is recorded and the
// next item is attempted; a failure on one candidate is recorded and the
// next candidate is attempted. Only candidate selection can fail a run.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"demogen/internal/config"
	"demogen/internal/crm"
	"demogen/internal/ledger"
	"demogen/internal/logging"
	"demogen/internal/planner"
	"demogen/internal/runlog"
	"demogen/internal/scorecard"
)

const tracerName = "demogen/orchestrate"

// Content writes free text for created records. Every method returns "" when
// nothing was generated. *content.Generator implements it.
type Content interface {
	MeetingNotes(ctx context.Context, subject, opportunityName, stage string, participants []string, past bool) string
	EmailBody(ctx context.Context, subject, opportunityName, stage string, past bool) string
	ScorecardAnswer(ctx context.Context, question, opportunityName, stage string) string
}

// Options configures a Runner.
type Options struct {
	Resolved *config.Resolved
	// Concurrency is the worker count. Values below 2 process candidates
	// sequentially with Client.
	Concurrency int
	// MaxOpps caps how many selected candidates are processed; 0 means no cap.
	MaxOpps int
	// Client lists candidates and serves sequential runs.
	Client crm.Client
	// Factory builds one client per worker. When nil, workers share Client.
	Factory crm.Factory
	// Content is optional.
	Content Content
	// Ledger is nil in tag mode and in dry runs.
	Ledger ledger.Ledger
	Sink   runlog.Sink
	Now    func() time.Time
	Logger *slog.Logger
}

// Runner executes runs for one resolved configuration.
type Runner struct {
	opts       Options
	cfg        *config.Config
	runID      string
	planner    *planner.Planner
	scorecards *scorecard.Generator
	retry      retryPolicy
	tracer     trace.Tracer
	logger     *slog.Logger
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Resolved == nil {
		return nil, errors.New("orchestrate: resolved config is required")
	}
	if opts.Client == nil {
		return nil, errors.New("orchestrate: CRM client is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("orchestrate: run sink is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("orchestrate")
	}
	cfg := &opts.Resolved.Config

	var writer scorecard.Writer
	if opts.Content != nil {
		writer = opts.Content
	}
	return &Runner{
		opts:    opts,
		cfg:     cfg,
		runID:   opts.Resolved.RunID,
		planner: planner.New(cfg.Activity, cfg.Run.Seed, opts.Resolved.Anchor),
		scorecards: scorecard.NewGenerator(scorecard.Options{
			Seed:            cfg.Run.Seed,
			CoverageTarget:  cfg.Scorecards.CoverageTarget,
			ConfidenceFloor: cfg.Scorecards.ConfidenceFloor,
			Mode:            cfg.Scorecards.Mode,
		}, writer),
		retry: retryPolicy{
			maxRetries: cfg.Run.MaxRetries,
			initial:    cfg.Run.RetryInitialInterval,
		},
		tracer: otel.Tracer(tracerName),
		logger: opts.Logger.With("run_id", opts.Resolved.RunID),
	}, nil
}

// QueryFromConfig converts the configured candidate filter into a CRM query.
func QueryFromConfig(q config.QueryConfig) crm.Query {
	return crm.Query{
		OpportunityType:       q.OpportunityType,
		StagesAllowed:         q.StagesAllowed,
		ExcludeIfOmittedField: q.ExcludeIfOmittedField,
		CloseDateStart:        q.CloseDateRange.Start,
		CloseDateEnd:          q.CloseDateRange.End,
		Limit:                 q.Limit,
	}
}

// Run processes every selected candidate and finalizes the run log.
//
// A candidate selection failure finalizes the run as failed and is
// returned. Per-candidate and per-item failures are recorded in the sink
// and do not fail the run. Cancelling ctx stops new candidates from
// starting; candidates already in progress run to completion.
func (r *Runner) Run(ctx context.Context) (runlog.Stats, error) {
	ctx, span := r.tracer.Start(ctx, "demogen.run", trace.WithAttributes(
		attribute.String("run.id", r.runID),
		attribute.Int("run.concurrency", r.opts.Concurrency),
	))
	defer span.End()

	start := time.Now()
	opps, err := r.selectCandidates(ctx)
	if err != nil {
		return r.abort(span, fmt.Errorf("select opportunities: %w", err))
	}

	var started int
	if r.opts.Concurrency <= 1 || len(opps) <= 1 {
		started = r.runSequential(ctx, opps)
	} else {
		started = r.runPool(ctx, opps)
	}

	if started < len(opps) {
		err := fmt.Errorf("run interrupted after %d of %d opportunities: %w", started, len(opps), context.Cause(ctx))
		return r.abort(span, err)
	}

	stats, err := r.opts.Sink.Finalize(runlog.StatusCompleted)
	if err != nil {
		return stats, fmt.Errorf("finalize run: %w", err)
	}
	r.logger.Info("run completed",
		"selected", stats.OppsSelected,
		"meetings", stats.MeetingsCreated,
		"emails", stats.EmailsCreated,
		"scorecards", stats.ScorecardsCreated,
		"failures", stats.Failures,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

// abort records a pipeline error and finalizes the run as failed.
func (r *Runner) abort(span trace.Span, err error) (runlog.Stats, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.opts.Sink.Error(runlog.ErrorEntry{
		Stage:     StagePipeline,
		Err:       err,
		Retryable: crm.IsRetryable(err),
	})
	r.logger.Error("run failed", "error", err)
	stats, ferr := r.opts.Sink.Finalize(runlog.StatusFailed)
	if ferr != nil {
		r.logger.Warn("finalize failed run", "error", ferr)
	}
	return stats, err
}

// selectCandidates lists candidates once, applies the safety cap and
// records the selection.
func (r *Runner) selectCandidates(ctx context.Context) ([]crm.Opportunity, error) {
	q := QueryFromConfig(r.cfg.Salesforce.Query)
	opps, err := withRetry(ctx, r.retry, r.logger, "list candidates", func() ([]crm.Opportunity, error) {
		return r.opts.Client.ListCandidates(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	if r.opts.MaxOpps > 0 && len(opps) > r.opts.MaxOpps {
		r.opts.Sink.Event(ActionOpportunitiesTruncated, runlog.Fields{
			"available": len(opps),
			"cap":       r.opts.MaxOpps,
		})
		r.logger.Warn("candidate list truncated", "available", len(opps), "cap", r.opts.MaxOpps)
		opps = opps[:r.opts.MaxOpps]
	}
	for _, opp := range opps {
		r.opts.Sink.Event(ActionOpportunitySelected, runlog.Fields{"opportunity_id": opp.ID})
	}
	r.opts.Sink.SetSelected(len(opps))
	r.logger.Info("candidates selected", "count", len(opps))
	return opps, nil
}

// runSequential processes opps in order with the shared client and returns
// how many were started.
func (r *Runner) runSequential(ctx context.Context, opps []crm.Opportunity) int {
	work := context.WithoutCancel(ctx)
	for i, opp := range opps {
		if ctx.Err() != nil {
			return i
		}
		r.process(work, r.opts.Client, opp)
	}
	return len(opps)
}

// newClient builds a worker's own client, or hands out the shared one when
// no factory is configured.
func (r *Runner) newClient(ctx context.Context) (crm.Client, error) {
	if r.opts.Factory == nil {
		return r.opts.Client, nil
	}
	return r.opts.Factory(ctx)
}
