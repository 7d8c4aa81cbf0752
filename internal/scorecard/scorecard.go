package scorecard

import (
	"context"
	"math"
	"strings"

	"demogen/internal/seeded"
)

// Answer modes.
const (
	ModeHeuristic = "heuristic"
	ModeLLM       = "llm"
	ModeHybrid    = "hybrid"
)

const (
	minConfidence = 0.5
	maxConfidence = 0.95

	confidenceWeight = 0.7
	coverageWeight   = 0.3
)

// Options tunes answer selection.
type Options struct {
	Seed            int64
	CoverageTarget  float64
	ConfidenceFloor float64
	Mode            string
}

// Target identifies the opportunity a scorecard is generated for.
type Target struct {
	OpportunityID string
	Name          string
	Stage         string
}

// Writer produces free-text answers. An empty string means nothing was
// generated and the heuristic answer is used instead.
type Writer interface {
	ScorecardAnswer(ctx context.Context, question, opportunityName, stage string) string
}

// Answer is one surviving scorecard answer.
type Answer struct {
	QuestionID string  `json:"question_id"`
	Question   string  `json:"question"`
	Category   string  `json:"category"`
	Text       string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// Result is a generated scorecard.
type Result struct {
	ScorecardID   string   `json:"scorecard_id"`
	Template      string   `json:"template"`
	OpportunityID string   `json:"opportunity_id"`
	Answers       []Answer `json:"answers"`
	Score         float64  `json:"score"`
	Coverage      float64  `json:"coverage"`
}

// Generator builds scorecards. It is safe for concurrent use as long as the
// Writer is.
type Generator struct {
	opts   Options
	writer Writer
}

// NewGenerator returns a Generator. w may be nil.
func NewGenerator(opts Options, w Writer) *Generator {
	return &Generator{opts: opts, writer: w}
}

// ID is the stable scorecard identifier for (opportunity, template).
func ID(opportunityID, template string) string {
	return strings.ToLower("sc_" + opportunityID + "_" + template)
}

// Generate draws answers for one (opportunity, template) pair.
func (g *Generator) Generate(ctx context.Context, target Target, templateName string) (Result, error) {
	tpl, err := Lookup(templateName)
	if err != nil {
		return Result{}, err
	}
	id := ID(target.OpportunityID, tpl.Name)
	s := seeded.New(g.opts.Seed, id)

	k := int(math.Floor(float64(len(tpl.Questions)) * g.opts.CoverageTarget))
	chosen := seeded.Sample(s, tpl.Questions, k)

	answers := make([]Answer, 0, len(chosen))
	for _, q := range chosen {
		confidence := round(s.Uniform(minConfidence, maxConfidence), 2)
		if confidence < g.opts.ConfidenceFloor {
			continue
		}
		// Drawn unconditionally so later draws do not depend on the writer.
		text := seeded.Choice(s, answerPool(q.Category))
		if g.opts.Mode != ModeHeuristic && g.writer != nil {
			if generated := g.writer.ScorecardAnswer(ctx, q.Text, target.Name, target.Stage); generated != "" {
				text = generated
			}
		}
		answers = append(answers, Answer{
			QuestionID: q.ID,
			Question:   q.Text,
			Category:   q.Category,
			Text:       text,
			Confidence: confidence,
		})
	}

	return Result{
		ScorecardID:   id,
		Template:      tpl.Name,
		OpportunityID: target.OpportunityID,
		Answers:       answers,
		Score:         Score(answers, len(tpl.Questions)),
		Coverage:      coverage(len(answers), len(tpl.Questions)),
	}, nil
}

// Coverage is the coverage Generate reports for the pair. The Writer is not
// consulted.
func (g *Generator) Coverage(target Target, templateName string) (float64, error) {
	res, err := NewGenerator(g.opts, nil).Generate(context.Background(), target, templateName)
	if err != nil {
		return 0, err
	}
	return res.Coverage, nil
}

// Score weights mean confidence against question coverage, scaled to 0-100
// and rounded to one decimal. It is 0 when there are no answers.
func Score(answers []Answer, questionCount int) float64 {
	if len(answers) == 0 || questionCount == 0 {
		return 0
	}
	var sum float64
	for _, a := range answers {
		sum += a.Confidence
	}
	mean := sum / float64(len(answers))
	raw := confidenceWeight*mean + coverageWeight*coverage(len(answers), questionCount)
	return round(raw*100, 1)
}

func coverage(answered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(answered) / float64(total)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
