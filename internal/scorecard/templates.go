// Package scorecard generates deterministic qualification scorecards.
//
// Templates form a closed registry keyed by name. Generation draws from a
// per-scorecard seeded stream, so the same (seed, opportunity, template)
// always yields the same answers and score.
package scorecard

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTemplate is returned for a template name outside the registry.
var ErrUnknownTemplate = errors.New("unknown scorecard template")

// Question is one template entry.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"question"`
	Category string `json:"category"`
}

// Template is a named, ordered question list.
type Template struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

var registry = map[string]Template{
	"MEDDICC": {
		Name: "MEDDICC",
		Questions: []Question{
			{ID: "metrics", Text: "What are the quantifiable business metrics the customer cares about?", Category: "Metrics"},
			{ID: "economic_buyer", Text: "Who is the economic buyer with budget authority?", Category: "Economic Buyer"},
			{ID: "decision_criteria", Text: "What are the formal decision criteria being used?", Category: "Decision Criteria"},
			{ID: "decision_process", Text: "What is the decision process and timeline?", Category: "Decision Process"},
			{ID: "identify_pain", Text: "What is the critical business pain being addressed?", Category: "Identify Pain"},
			{ID: "champion", Text: "Who is our champion and how are they helping us?", Category: "Champion"},
			{ID: "competition", Text: "What competitive alternatives are being considered?", Category: "Competition"},
		},
	},
	"BANT": {
		Name: "BANT",
		Questions: []Question{
			{ID: "budget", Text: "Is budget allocated for this purchase, and how much?", Category: "Budget"},
			{ID: "authority", Text: "Who signs off on the purchase?", Category: "Authority"},
			{ID: "need", Text: "What problem does the customer need solved?", Category: "Need"},
			{ID: "timeline", Text: "When does the customer expect to buy and go live?", Category: "Timeline"},
		},
	},
}

// Lookup returns the named template.
func Lookup(name string) (Template, error) {
	t, ok := registry[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t, nil
}

// Names lists registered template names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var fallbackAnswers = []string{"Information being gathered"}

// heuristicAnswers is the canned answer pool per question category.
var heuristicAnswers = map[string][]string{
	"Metrics": {
		"Reduce operational costs by 30%",
		"Improve sales efficiency by 25%",
		"Increase revenue by $2M annually",
	},
	"Economic Buyer": {
		"VP of Sales - confirmed budget authority",
		"CFO - final approval on investments >$100k",
		"Chief Revenue Officer - owns this initiative",
	},
	"Decision Criteria": {
		"ROI >200%, implementation <90 days, enterprise security",
		"Must integrate with existing CRM, scalable to 500+ users",
		"TCO, deployment speed, vendor stability",
	},
	"Decision Process": {
		"Eval complete by Q4, board approval in Dec, go-live Q1",
		"30-day trial, vendor selection by month-end, Q1 implementation",
		"Technical review (2 weeks), procurement (3 weeks), deploy Q4",
	},
	"Identify Pain": {
		"Manual processes costing 20 hours/week per rep",
		"Lack of visibility into pipeline causing missed forecasts",
		"Data scattered across 5 systems, no single source of truth",
	},
	"Champion": {
		"Sales Operations Director - driving evaluation, has executive access",
		"VP Sales - using our solution in prev role, advocating internally",
		"Head of RevOps - aligned on vision, coaching us on internal politics",
	},
	"Competition": {
		"Evaluating Status Quo, Competitor A (concerns: price), Competitor B (concerns: complexity)",
		"Competitor A (incumbent, but lack key features), Build in-house (rejected due to timeline)",
		"Only alternative is status quo - no other vendors in final consideration",
	},
	"Budget": {
		"$250k approved in FY plan, held by Sales Ops",
		"Budget pending Q3 reforecast, sponsor expects approval",
		"Funded from existing tooling line after consolidation",
	},
	"Authority": {
		"CRO signs, procurement runs the paperwork",
		"VP Sales approves up to $300k without board review",
		"CFO and CIO co-sign any multi-year commitment",
	},
	"Need": {
		"Reps spend a day a week on manual CRM updates",
		"Forecast accuracy below 70% for three quarters",
		"No activity visibility for new-hire coaching",
	},
	"Timeline": {
		"Decision by end of quarter, rollout next quarter",
		"Pilot in 30 days, full rollout tied to SKO",
		"Contract aligned with incumbent renewal in 90 days",
	},
}

func answerPool(category string) []string {
	if pool, ok := heuristicAnswers[category]; ok {
		return pool
	}
	return fallbackAnswers
}
