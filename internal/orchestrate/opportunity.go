package orchestrate

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"demogen/internal/config"
	"demogen/internal/crm"
	"demogen/internal/ledger"
	"demogen/internal/planner"
	"demogen/internal/runlog"
	"demogen/internal/scorecard"
)

// candidate is the processing state of one opportunity.
type candidate struct {
	opp    crm.Opportunity
	client crm.Client
	span   trace.Span

	meetings   int
	emails     int
	scorecards int
	failed     int
}

// process runs one candidate to completion. Errors and panics are recorded
// against the candidate and never propagate.
func (r *Runner) process(ctx context.Context, client crm.Client, opp crm.Opportunity) {
	ctx, span := r.tracer.Start(ctx, "demogen.opportunity", trace.WithAttributes(
		attribute.String("opportunity.id", opp.ID),
	))
	defer span.End()

	c := &candidate{opp: opp, client: client, span: span}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic processing opportunity", "opportunity_id", opp.ID, "panic", p, "stack", string(debug.Stack()))
			r.candidateFailed(c, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := r.apply(ctx, c); err != nil {
		r.candidateFailed(c, err)
	}
}

func (r *Runner) candidateFailed(c *candidate, err error) {
	c.span.RecordError(err)
	c.span.SetStatus(codes.Error, err.Error())
	r.opts.Sink.Error(runlog.ErrorEntry{
		Stage:         StageOpportunity,
		Err:           err,
		OpportunityID: c.opp.ID,
		Retryable:     crm.IsRetryable(err),
	})
}

// itemFailed records a failure of one meeting, email or scorecard. The
// candidate goes on with its next item.
func (r *Runner) itemFailed(c *candidate, stage string, err error, f runlog.Fields) {
	c.failed++
	c.span.RecordError(err, trace.WithAttributes(attribute.String("stage", stage)))
	r.logger.Warn("item failed", "stage", stage, "opportunity_id", c.opp.ID, "error", err)
	r.opts.Sink.Error(runlog.ErrorEntry{
		Stage:         stage,
		Err:           err,
		OpportunityID: c.opp.ID,
		Retryable:     crm.IsRetryable(err),
		Fields:        f,
	})
}

// apply walks one candidate through its states: skip when already
// recorded, apply activities, apply scorecards, record completion. The
// returned error abandons the candidate.
func (r *Runner) apply(ctx context.Context, c *candidate) error {
	if r.opts.Ledger != nil {
		done, err := r.opts.Ledger.HasOpportunity(r.runID, c.opp.ID)
		if err != nil {
			return err
		}
		if done {
			r.opts.Sink.Event(ActionOpportunitySkipped, runlog.Fields{
				"opportunity_id": c.opp.ID,
				"reason":         "already_processed",
			})
			r.opts.Sink.Add(runlog.OppsSkipped, 1)
			target := scorecard.Target{OpportunityID: c.opp.ID, Name: c.opp.Name, Stage: c.opp.StageName}
			for _, name := range r.cfg.Scorecards.Templates {
				r.recordedCoverage(target, name)
			}
			return nil
		}
	}

	plan := r.planner.Plan(c.opp.ID)
	for _, m := range plan.Meetings {
		if err := r.applyMeeting(ctx, c, m); err != nil {
			return err
		}
	}
	for _, e := range plan.Emails {
		if err := r.applyEmail(ctx, c, e); err != nil {
			return err
		}
	}

	target := scorecard.Target{OpportunityID: c.opp.ID, Name: c.opp.Name, Stage: c.opp.StageName}
	for _, name := range r.cfg.Scorecards.Templates {
		if err := r.applyScorecard(ctx, c, target, name); err != nil {
			return err
		}
	}

	if c.failed == 0 && r.opts.Ledger != nil {
		if err := r.opts.Ledger.RecordOpportunity(r.runID, c.opp.ID, r.opts.Now()); err != nil {
			r.itemFailed(c, StageLedgerWrite, err, runlog.Fields{"table": "opportunities"})
		}
	}
	r.opts.Sink.Event(ActionOpportunityCompleted, runlog.Fields{
		"opportunity_id": c.opp.ID,
		"meetings":       c.meetings,
		"emails":         c.emails,
		"scorecards":     c.scorecards,
		"failed_items":   c.failed,
	})
	return nil
}

func (r *Runner) tag() *crm.Tag {
	if r.cfg.Run.IdempotencyMode != config.ModeTag {
		return nil
	}
	return &crm.Tag{Field: r.cfg.Run.RunTagField, Value: r.runID}
}

func (r *Runner) describe() bool {
	return r.opts.Content != nil && r.cfg.Activity.RealismLevel != config.RealismNone
}

// seen reports whether the ledger already holds an activity and records the
// skip when it does.
func (r *Runner) seen(c *candidate, action, signature string) (bool, error) {
	if r.opts.Ledger == nil {
		return false, nil
	}
	done, err := r.opts.Ledger.HasActivity(r.runID, c.opp.ID, signature)
	if err != nil || !done {
		return false, err
	}
	r.opts.Sink.Event(action, runlog.Fields{
		"opportunity_id": c.opp.ID,
		"signature":      signature,
	})
	r.opts.Sink.Add(runlog.ActivitiesSkipped, 1)
	return true, nil
}

func (r *Runner) recordActivity(c *candidate, kind, signature, id string) {
	if r.opts.Ledger == nil {
		return
	}
	err := r.opts.Ledger.RecordActivity(ledger.Activity{
		RunID:      r.runID,
		OppID:      c.opp.ID,
		Signature:  signature,
		ActivityID: id,
		Type:       kind,
		CreatedAt:  r.opts.Now(),
	})
	if err != nil {
		r.itemFailed(c, StageLedgerWrite, err, runlog.Fields{"table": "activities", "activity_id": id})
	}
}

func (r *Runner) applyMeeting(ctx context.Context, c *candidate, m planner.Meeting) error {
	sig := m.Signature()
	if done, err := r.seen(c, ActionMeetingSkipped, sig); err != nil || done {
		return err
	}

	var description string
	if r.describe() {
		description = r.opts.Content.MeetingNotes(ctx, m.Subject, c.opp.Name, c.opp.StageName, m.Participants, m.When == planner.Past)
	}
	req := crm.Meeting{
		Subject:         m.Subject,
		Start:           m.Start,
		DurationMinutes: m.DurationMinutes,
		RelatedID:       c.opp.ID,
		OwnerID:         c.opp.OwnerID,
		Description:     description,
		Tag:             r.tag(),
	}
	id, err := withRetry(ctx, r.retry, r.logger, "create meeting", func() (string, error) {
		return c.client.CreateMeeting(ctx, req)
	})
	if err != nil {
		r.itemFailed(c, StageMeetingCreate, err, runlog.Fields{"signature": sig, "subject": m.Subject})
		return nil
	}

	c.meetings++
	r.opts.Sink.Event(ActionMeetingCreated, runlog.Fields{
		"opportunity_id": c.opp.ID,
		"activity_id":    id,
		"when":           string(m.When),
		"start":          m.Timestamp(),
	})
	r.opts.Sink.Add(runlog.MeetingsCreated, 1)
	r.recordActivity(c, ledger.TypeMeeting, sig, id)
	return nil
}

func (r *Runner) applyEmail(ctx context.Context, c *candidate, e planner.Email) error {
	sig := e.Signature()
	if done, err := r.seen(c, ActionEmailSkipped, sig); err != nil || done {
		return err
	}

	var description string
	if r.describe() {
		description = r.opts.Content.EmailBody(ctx, e.Subject, c.opp.Name, c.opp.StageName, e.When == planner.Past)
	}
	req := crm.Email{
		Subject:     e.Subject,
		Date:        e.Date,
		RelatedID:   c.opp.ID,
		OwnerID:     c.opp.OwnerID,
		Description: description,
		Tag:         r.tag(),
	}
	id, err := withRetry(ctx, r.retry, r.logger, "create email", func() (string, error) {
		return c.client.CreateEmail(ctx, req)
	})
	if err != nil {
		r.itemFailed(c, StageEmailCreate, err, runlog.Fields{"signature": sig, "subject": e.Subject})
		return nil
	}

	c.emails++
	r.opts.Sink.Event(ActionEmailCreated, runlog.Fields{
		"opportunity_id": c.opp.ID,
		"activity_id":    id,
		"when":           string(e.When),
		"date":           e.ActivityDate(),
	})
	r.opts.Sink.Add(runlog.EmailsCreated, 1)
	r.recordActivity(c, ledger.TypeEmail, sig, id)
	return nil
}

// applyScorecard generates one template's scorecard and records its answers
// before the scorecard itself, so an interrupted scorecard is redone.
func (r *Runner) applyScorecard(ctx context.Context, c *candidate, target scorecard.Target, template string) error {
	if r.opts.Ledger != nil {
		done, err := r.opts.Ledger.HasScorecard(r.runID, c.opp.ID, template)
		if err != nil {
			return err
		}
		if done {
			r.opts.Sink.Event(ActionScorecardSkipped, runlog.Fields{
				"opportunity_id": c.opp.ID,
				"template":       template,
			})
			r.recordedCoverage(target, template)
			return nil
		}
	}

	res, err := r.scorecards.Generate(ctx, target, template)
	if err != nil {
		r.itemFailed(c, StageScorecardUpsert, err, runlog.Fields{"template": template})
		return nil
	}

	for _, a := range res.Answers {
		ok, err := r.recordAnswer(c, res.ScorecardID, a)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if r.opts.Ledger != nil {
		err := r.opts.Ledger.RecordScorecard(ledger.Scorecard{
			RunID:       r.runID,
			OppID:       c.opp.ID,
			ScorecardID: res.ScorecardID,
			Template:    template,
			CreatedAt:   r.opts.Now(),
		})
		if err != nil {
			r.itemFailed(c, StageLedgerWrite, err, runlog.Fields{"table": "scorecards", "scorecard_id": res.ScorecardID})
			return nil
		}
	}

	c.scorecards++
	r.opts.Sink.Event(ActionScorecardUpserted, runlog.Fields{
		"opportunity_id": c.opp.ID,
		"scorecard_id":   res.ScorecardID,
		"template":       template,
		"score":          res.Score,
		"coverage":       res.Coverage,
	})
	r.opts.Sink.Add(runlog.ScorecardsCreated, 1)
	r.opts.Sink.MaxCoverage(res.Coverage)
	return nil
}

// recordedCoverage feeds the coverage of a scorecard written by an earlier
// attempt into the run's best coverage.
func (r *Runner) recordedCoverage(target scorecard.Target, template string) {
	if cov, err := r.scorecards.Coverage(target, template); err == nil {
		r.opts.Sink.MaxCoverage(cov)
	}
}

// recordAnswer writes one answer unless the ledger already has it. It
// reports false when the write failed and the scorecard must stop.
func (r *Runner) recordAnswer(c *candidate, scorecardID string, a scorecard.Answer) (bool, error) {
	if r.opts.Ledger != nil {
		done, err := r.opts.Ledger.HasScorecardAnswer(r.runID, scorecardID, a.QuestionID)
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}
		err = r.opts.Ledger.RecordScorecardAnswer(ledger.Answer{
			RunID:       r.runID,
			ScorecardID: scorecardID,
			QuestionID:  a.QuestionID,
			Confidence:  a.Confidence,
			CreatedAt:   r.opts.Now(),
		})
		if err != nil {
			r.itemFailed(c, StageLedgerWrite, err, runlog.Fields{
				"table":        "scorecard_answers",
				"scorecard_id": scorecardID,
				"question_id":  a.QuestionID,
			})
			return false, nil
		}
	}
	r.opts.Sink.Event(ActionScorecardAnswerWritten, runlog.Fields{
		"opportunity_id": c.opp.ID,
		"scorecard_id":   scorecardID,
		"question_id":    a.QuestionID,
		"confidence":     a.Confidence,
	})
	r.opts.Sink.Add(runlog.ScorecardAnswersWritten, 1)
	return true, nil
}
