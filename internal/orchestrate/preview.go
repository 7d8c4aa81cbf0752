package orchestrate

import (
	"context"
	"time"

	"demogen/internal/config"
	"demogen/internal/planner"
	"demogen/internal/scorecard"
)

// Preview is what a run would create for one opportunity.
type Preview struct {
	Anchor     time.Time            `json:"anchor"`
	Plan       planner.ActivityPlan `json:"plan"`
	Summary    planner.Summary      `json:"summary"`
	Scorecards []scorecard.Result   `json:"scorecards"`
}

// PreviewOpportunity plans oppID under cfg without touching a CRM. Scorecard
// answers always come from the heuristic pools, so the preview is offline.
func PreviewOpportunity(ctx context.Context, cfg *config.Config, oppID string, now time.Time) (Preview, error) {
	anchor, err := cfg.Anchor(now)
	if err != nil {
		return Preview{}, err
	}
	plan := planner.New(cfg.Activity, cfg.Run.Seed, anchor).Plan(oppID)
	gen := scorecard.NewGenerator(scorecard.Options{
		Seed:            cfg.Run.Seed,
		CoverageTarget:  cfg.Scorecards.CoverageTarget,
		ConfidenceFloor: cfg.Scorecards.ConfidenceFloor,
		Mode:            scorecard.ModeHeuristic,
	}, nil)

	p := Preview{Anchor: anchor, Plan: plan, Summary: plan.Summary()}
	for _, name := range cfg.Scorecards.Templates {
		res, err := gen.Generate(ctx, scorecard.Target{OpportunityID: oppID}, name)
		if err != nil {
			return Preview{}, err
		}
		p.Scorecards = append(p.Scorecards, res)
	}
	return p, nil
}
