package motion

import (
	"testing"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func feedAccel(s *Scorer, mags []float64) {
	for i, m := range mags {
		s.ObserveAccel(t0.Add(time.Duration(i)*100*time.Millisecond), models.Vec3{Y: m})
	}
}

// TestSmoothness_SteadyBeatsJerky verifies the monotonicity requirement:
// a steadier acceleration trace never scores lower than a jerkier one.
func TestSmoothness_SteadyBeatsJerky(t *testing.T) {
	steady := NewScorer()
	feedAccel(steady, []float64{9.8, 9.9, 10.0, 9.9, 9.8, 9.9})

	jerky := NewScorer()
	feedAccel(jerky, []float64{9.8, 14.0, 6.0, 15.0, 5.0, 13.0})

	ss, js := steady.Smoothness(), jerky.Smoothness()
	if ss <= js {
		t.Errorf("steady %v should beat jerky %v", ss, js)
	}
	if ss <= 0 || ss > 100 || js < 0 {
		t.Errorf("scores out of range: steady=%v jerky=%v", ss, js)
	}
}

// TestSmoothness_ConstantAccelIsPerfect verifies zero jerk scores 100.
func TestSmoothness_ConstantAccelIsPerfect(t *testing.T) {
	s := NewScorer()
	feedAccel(s, []float64{9.8, 9.8, 9.8, 9.8})
	if got := s.Smoothness(); got != 100 {
		t.Errorf("Smoothness = %v, want 100 for zero jerk", got)
	}
}

// TestSmoothness_Deterministic verifies the same trace always scores the same.
func TestSmoothness_Deterministic(t *testing.T) {
	trace := []float64{9.8, 11.0, 9.0, 10.5}
	a, b := NewScorer(), NewScorer()
	feedAccel(a, trace)
	feedAccel(b, trace)
	if a.Smoothness() != b.Smoothness() {
		t.Error("identical traces scored differently")
	}
}

// TestConsistency_UniformBeatsVaried verifies that uniform phase durations
// and ranges of motion outscore varied ones.
func TestConsistency_UniformBeatsVaried(t *testing.T) {
	uniform := NewScorer()
	for i := 0; i < 4; i++ {
		uniform.ObservePhase(models.RepPhase{Duration: 2 * time.Second}, 0.5)
	}

	varied := NewScorer()
	durs := []time.Duration{1 * time.Second, 3 * time.Second, 1500 * time.Millisecond, 4 * time.Second}
	roms := []float64{0.2, 0.9, 0.4, 0.7}
	for i := range durs {
		varied.ObservePhase(models.RepPhase{Duration: durs[i]}, roms[i])
	}

	uc, vc := uniform.Consistency(), varied.Consistency()
	if uc != 100 {
		t.Errorf("uniform consistency = %v, want 100", uc)
	}
	if vc >= uc {
		t.Errorf("varied %v should score below uniform %v", vc, uc)
	}
}

// TestConsistency_SinglePhase verifies a single observation has no variance
// and an empty set scores zero.
func TestConsistency_SinglePhase(t *testing.T) {
	s := NewScorer()
	s.ObservePhase(models.RepPhase{Duration: 2 * time.Second}, 0.5)
	if got := s.Consistency(); got != 100 {
		t.Errorf("single-phase consistency = %v, want 100", got)
	}
	if got := NewScorer().Consistency(); got != 0 {
		t.Errorf("empty consistency = %v, want 0", got)
	}
}

// TestReset verifies Reset clears accumulated state.
func TestReset(t *testing.T) {
	s := NewScorer()
	feedAccel(s, []float64{9.8, 15.0, 5.0})
	s.ObservePhase(models.RepPhase{Duration: time.Second}, 0.3)
	s.Reset()
	if s.Smoothness() != 0 || s.Consistency() != 0 {
		t.Error("Reset did not clear state")
	}
}
