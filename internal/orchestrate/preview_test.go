package orchestrate

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPreviewOpportunity(t *testing.T) {
	res := testResolved(t)
	cfg := &res.Config
	cfg.Activity.AnchorDate = anchor.Format(time.DateOnly)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	p, err := PreviewOpportunity(context.Background(), cfg, "006A", now)
	if err != nil {
		t.Fatalf("PreviewOpportunity: %v", err)
	}
	if !p.Anchor.Equal(res.Anchor) {
		t.Errorf("anchor = %v, want %v", p.Anchor, res.Anchor)
	}
	if p.Plan.OpportunityID != "006A" {
		t.Errorf("plan opportunity = %q", p.Plan.OpportunityID)
	}
	if p.Summary.PastMeetings != 3 || p.Summary.FutureMeetings != 1 || p.Summary.TotalEmails != 5 {
		t.Errorf("summary = %+v", p.Summary)
	}
	if len(p.Scorecards) != len(cfg.Scorecards.Templates) {
		t.Fatalf("scorecards = %d, want %d", len(p.Scorecards), len(cfg.Scorecards.Templates))
	}

	again, err := PreviewOpportunity(context.Background(), cfg, "006A", now.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("PreviewOpportunity: %v", err)
	}
	if diff := cmp.Diff(p, again); diff != "" {
		t.Errorf("preview not deterministic (-first +second):\n%s", diff)
	}
}

func TestPreviewOpportunity_UnknownTemplate(t *testing.T) {
	res := testResolved(t)
	res.Config.Scorecards.Templates = []string{"NOPE"}
	if _, err := PreviewOpportunity(context.Background(), &res.Config, "006A", time.Now()); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
