package scorecard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var target = Target{OpportunityID: "OPP-1", Name: "Acme Expansion", Stage: "Discovery"}

func defaultOpts() Options {
	return Options{Seed: 42, CoverageTarget: 0.8, ConfidenceFloor: 0.55, Mode: ModeHeuristic}
}

type fakeWriter struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (w *fakeWriter) ScorecardAnswer(_ context.Context, _, _, _ string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.text
}

func confidences(r Result) []float64 {
	out := make([]float64, len(r.Answers))
	for i, a := range r.Answers {
		out[i] = a.Confidence
	}
	return out
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := NewGenerator(defaultOpts(), nil).Generate(context.Background(), target, "MEDDICC")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := NewGenerator(defaultOpts(), nil).Generate(context.Background(), target, "MEDDICC")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("scorecards differ (-a +b):\n%s", diff)
	}
	if a.ScorecardID != "sc_opp-1_meddicc" {
		t.Errorf("ScorecardID = %q", a.ScorecardID)
	}
}

func TestGenerate_SeedSensitive(t *testing.T) {
	opts := defaultOpts()
	opts.ConfidenceFloor = 0
	a, _ := NewGenerator(opts, nil).Generate(context.Background(), target, "MEDDICC")
	opts.Seed = 7
	b, _ := NewGenerator(opts, nil).Generate(context.Background(), target, "MEDDICC")
	if cmp.Equal(a.Answers, b.Answers) {
		t.Error("different seeds produced identical answers")
	}
}

func TestGenerate_CoverageBoundAndFloor(t *testing.T) {
	for _, floor := range []float64{0, 0.55, 0.8, 0.96} {
		opts := defaultOpts()
		opts.ConfidenceFloor = floor
		r, err := NewGenerator(opts, nil).Generate(context.Background(), target, "MEDDICC")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		// floor(7 * 0.8) = 5
		if len(r.Answers) > 5 {
			t.Errorf("floor %.2f: %d answers, want <= 5", floor, len(r.Answers))
		}
		if floor == 0 && len(r.Answers) != 5 {
			t.Errorf("floor 0: %d answers, want exactly 5", len(r.Answers))
		}
		if floor == 0.96 && len(r.Answers) != 0 {
			t.Errorf("floor above max confidence should drop everything, got %d", len(r.Answers))
		}
		seen := map[string]bool{}
		for _, a := range r.Answers {
			if a.Confidence < floor || a.Confidence < 0.5 || a.Confidence > 0.95 {
				t.Errorf("confidence %v out of bounds (floor %v)", a.Confidence, floor)
			}
			if seen[a.QuestionID] {
				t.Errorf("duplicate question %s", a.QuestionID)
			}
			seen[a.QuestionID] = true
		}
		wantCoverage := float64(len(r.Answers)) / 7
		if r.Coverage != wantCoverage {
			t.Errorf("Coverage = %v, want %v", r.Coverage, wantCoverage)
		}
	}
}

func TestGenerate_NoAnswersScoresZero(t *testing.T) {
	opts := defaultOpts()
	opts.CoverageTarget = 0
	r, err := NewGenerator(opts, nil).Generate(context.Background(), target, "BANT")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(r.Answers) != 0 || r.Score != 0 || r.Coverage != 0 {
		t.Errorf("want empty scorecard, got %+v", r)
	}
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	_, err := NewGenerator(defaultOpts(), nil).Generate(context.Background(), target, "SPICED")
	if !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("err = %v, want ErrUnknownTemplate", err)
	}
}

func TestGenerate_WriterDoesNotShiftDraws(t *testing.T) {
	opts := defaultOpts()
	opts.ConfidenceFloor = 0
	heuristic, _ := NewGenerator(opts, nil).Generate(context.Background(), target, "MEDDICC")

	opts.Mode = ModeHybrid
	w := &fakeWriter{text: "Generated answer"}
	hybrid, _ := NewGenerator(opts, w).Generate(context.Background(), target, "MEDDICC")

	if diff := cmp.Diff(confidences(heuristic), confidences(hybrid)); diff != "" {
		t.Errorf("writer changed confidences:\n%s", diff)
	}
	if w.calls != len(hybrid.Answers) {
		t.Errorf("writer calls = %d, want %d", w.calls, len(hybrid.Answers))
	}
	for _, a := range hybrid.Answers {
		if a.Text != "Generated answer" {
			t.Errorf("answer text = %q, want generated text", a.Text)
		}
	}
}

func TestGenerate_EmptyWriterFallsBackToHeuristic(t *testing.T) {
	opts := defaultOpts()
	opts.Mode = ModeLLM
	w := &fakeWriter{}
	r, _ := NewGenerator(opts, w).Generate(context.Background(), target, "MEDDICC")
	for _, a := range r.Answers {
		if a.Text == "" {
			t.Errorf("question %s has empty text", a.QuestionID)
		}
		if !contains(heuristicAnswers[a.Category], a.Text) {
			t.Errorf("answer %q is not from the %s pool", a.Text, a.Category)
		}
	}
}

func TestGenerate_HeuristicModeSkipsWriter(t *testing.T) {
	w := &fakeWriter{text: "never"}
	_, _ = NewGenerator(defaultOpts(), w).Generate(context.Background(), target, "MEDDICC")
	if w.calls != 0 {
		t.Errorf("writer called %d times in heuristic mode", w.calls)
	}
}

func TestGenerator_Coverage(t *testing.T) {
	opts := defaultOpts()
	opts.Mode = ModeLLM
	w := &fakeWriter{text: "Generated answer"}
	g := NewGenerator(opts, w)
	r, err := g.Generate(context.Background(), target, "MEDDICC")
	if err != nil {
		t.Fatal(err)
	}
	calls := w.calls
	cov, err := g.Coverage(target, "MEDDICC")
	if err != nil {
		t.Fatal(err)
	}
	if cov != r.Coverage {
		t.Errorf("Coverage = %v, Generate reported %v", cov, r.Coverage)
	}
	if w.calls != calls {
		t.Errorf("Coverage called the writer %d times", w.calls-calls)
	}
	if _, err := g.Coverage(target, "SPICED"); err == nil {
		t.Error("expected an error for an unknown template")
	}
}

func TestScore(t *testing.T) {
	answers := []Answer{{Confidence: 0.8}, {Confidence: 0.6}}
	// 0.7 * 0.7 + 0.3 * (2/4) = 0.64
	if got := Score(answers, 4); got != 64.0 {
		t.Errorf("Score = %v, want 64", got)
	}
	answers = []Answer{{Confidence: 0.91}, {Confidence: 0.77}, {Confidence: 0.66}}
	// 0.7 * 0.78 + 0.3 * 3/7 = 0.674571... -> 67.5
	if got := Score(answers, 7); got != 67.5 {
		t.Errorf("Score = %v, want 67.5", got)
	}
	if got := Score(nil, 7); got != 0 {
		t.Errorf("Score(nil) = %v", got)
	}
}

func TestRegistry(t *testing.T) {
	if diff := cmp.Diff([]string{"BANT", "MEDDICC"}, Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	tpl, err := Lookup("MEDDICC")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(tpl.Questions) != 7 {
		t.Errorf("MEDDICC has %d questions, want 7", len(tpl.Questions))
	}
	for _, name := range Names() {
		tpl, _ := Lookup(name)
		for _, q := range tpl.Questions {
			if _, ok := heuristicAnswers[q.Category]; !ok {
				t.Errorf("%s/%s: no heuristic pool for category %q", name, q.ID, q.Category)
			}
		}
	}
	if _, err := Lookup("meddicc"); err == nil || !strings.Contains(err.Error(), "meddicc") {
		t.Errorf("lookup is case-sensitive and names the template, got %v", err)
	}
}

func contains(pool []string, s string) bool {
	for _, p := range pool {
		if p == s {
			return true
		}
	}
	return false
}
