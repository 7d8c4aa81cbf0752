package seeded

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func draws(s *Stream) []int {
	out := make([]int, 20)
	for i := range out {
		out[i] = s.IntRange(0, 1000)
	}
	return out
}

func TestNew_SameKeySameStream(t *testing.T) {
	a := draws(New(42, "OPP-1"))
	b := draws(New(42, "OPP-1"))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("streams diverged (-a +b):\n%s", diff)
	}
}

func TestNew_DifferentKeysDiffer(t *testing.T) {
	base := draws(New(42, "OPP-1"))
	if cmp.Equal(base, draws(New(43, "OPP-1"))) {
		t.Error("seed change did not change the stream")
	}
	if cmp.Equal(base, draws(New(42, "OPP-2"))) {
		t.Error("id change did not change the stream")
	}
}

func TestIntRange_Inclusive(t *testing.T) {
	s := New(7, "range")
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := s.IntRange(3, 5)
		if v < 3 || v > 5 {
			t.Fatalf("IntRange(3,5) = %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected all of 3..5 to appear, saw %v", seen)
	}
	if got := s.IntRange(4, 4); got != 4 {
		t.Errorf("IntRange(4,4) = %d", got)
	}
}

func TestSample_DistinctAndClamped(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	s := New(1, "sample")
	got := Sample(s, items, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, v := range got {
		if seen[v] {
			t.Errorf("duplicate %q in sample %v", v, got)
		}
		seen[v] = true
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, items); diff != "" {
		t.Errorf("input mutated:\n%s", diff)
	}
	if n := len(Sample(s, items, 10)); n != 5 {
		t.Errorf("clamped sample len = %d, want 5", n)
	}
	if Sample(s, items, 0) != nil {
		t.Error("k=0 should return nil")
	}
}

func TestUniform_Bounds(t *testing.T) {
	s := New(9, "uniform")
	for i := 0; i < 1000; i++ {
		v := s.Uniform(0.5, 0.95)
		if v < 0.5 || v >= 0.95 {
			t.Fatalf("Uniform out of range: %v", v)
		}
	}
}
