package orchestrate

import (
	"context"
	"errors"
	"fmt"

	"demogen/internal/crm"
	"demogen/internal/scorecard"
)

// ErrOpportunityNotFound is returned by SmokeTest when the opportunity is not
// among the selected candidates.
var ErrOpportunityNotFound = errors.New("opportunity not found in candidate query")

// SmokeResult is what a smoke test created.
type SmokeResult struct {
	OpportunityID  string  `json:"opportunity_id"`
	MeetingID      string  `json:"meeting_id,omitempty"`
	MeetingSubject string  `json:"meeting_subject,omitempty"`
	EmailID        string  `json:"email_id,omitempty"`
	EmailSubject   string  `json:"email_subject,omitempty"`
	ScorecardID    string  `json:"scorecard_id,omitempty"`
	ScorecardScore float64 `json:"scorecard_score"`
}

// SmokeTest creates the first planned meeting and email for one candidate
// and generates its first configured scorecard. It bypasses the ledger and
// the run log, and any failure is returned.
func (r *Runner) SmokeTest(ctx context.Context, oppID string) (SmokeResult, error) {
	opps, err := r.opts.Client.ListCandidates(ctx, QueryFromConfig(r.cfg.Salesforce.Query))
	if err != nil {
		return SmokeResult{}, fmt.Errorf("select opportunities: %w", err)
	}
	var opp *crm.Opportunity
	for i := range opps {
		if opps[i].ID == oppID {
			opp = &opps[i]
			break
		}
	}
	if opp == nil {
		return SmokeResult{}, fmt.Errorf("%w: %s", ErrOpportunityNotFound, oppID)
	}

	res := SmokeResult{OpportunityID: oppID}
	plan := r.planner.Plan(oppID)
	if len(plan.Meetings) > 0 {
		m := plan.Meetings[0]
		id, err := r.opts.Client.CreateMeeting(ctx, crm.Meeting{
			Subject:         m.Subject,
			Start:           m.Start,
			DurationMinutes: m.DurationMinutes,
			RelatedID:       oppID,
			OwnerID:         opp.OwnerID,
			Tag:             r.tag(),
		})
		if err != nil {
			return res, fmt.Errorf("create meeting: %w", err)
		}
		res.MeetingID, res.MeetingSubject = id, m.Subject
	}
	if len(plan.Emails) > 0 {
		e := plan.Emails[0]
		id, err := r.opts.Client.CreateEmail(ctx, crm.Email{
			Subject:   e.Subject,
			Date:      e.Date,
			RelatedID: oppID,
			OwnerID:   opp.OwnerID,
			Tag:       r.tag(),
		})
		if err != nil {
			return res, fmt.Errorf("create email: %w", err)
		}
		res.EmailID, res.EmailSubject = id, e.Subject
	}

	if len(r.cfg.Scorecards.Templates) > 0 {
		target := scorecard.Target{OpportunityID: oppID, Name: opp.Name, Stage: opp.StageName}
		sc, err := r.scorecards.Generate(ctx, target, r.cfg.Scorecards.Templates[0])
		if err != nil {
			return res, fmt.Errorf("generate scorecard: %w", err)
		}
		res.ScorecardID, res.ScorecardScore = sc.ScorecardID, sc.Score
	}
	r.logger.Info("smoke test passed", "opportunity_id", oppID, "meeting_id", res.MeetingID, "email_id", res.EmailID)
	return res, nil
}
