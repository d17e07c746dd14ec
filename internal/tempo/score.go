package tempo

import (
	"time"

	"github.com/meltforce/setforge/internal/models"
)

// Penalty curve: a phase within ±15% of the target duration scores 100.
// Past the band the score falls linearly at 200 points per unit of relative
// deviation beyond 0.15 and floors at 0, so a phase 65% off target scores 0.
// The curve is monotonic: larger deviation never scores higher.
const (
	tolerance    = 0.15
	penaltySlope = 200.0
)

// Targets carries the per-phase target durations. Plateau tests prescribe a
// slower eccentric than concentric; ordinary sets use the same duration for
// both halves.
type Targets struct {
	Eccentric  time.Duration
	Concentric time.Duration
}

// SymmetricTargets targets the same duration for both phase kinds.
func SymmetricTargets(d time.Duration) Targets {
	return Targets{Eccentric: d, Concentric: d}
}

// For returns the target duration for a phase kind.
func (t Targets) For(kind models.PhaseKind) time.Duration {
	if kind == models.PhaseConcentric {
		return t.Concentric
	}
	return t.Eccentric
}

// PhaseScore scores a single phase against the target duration.
func PhaseScore(d, target time.Duration) float64 {
	if target <= 0 {
		return 0
	}
	dev := (d.Seconds() - target.Seconds()) / target.Seconds()
	if dev < 0 {
		dev = -dev
	}
	if dev <= tolerance {
		return 100
	}
	score := 100 - penaltySlope*(dev-tolerance)
	if score < 0 {
		return 0
	}
	return score
}

// SetScore averages phase scores across the set, each phase against the
// target for its kind. Phases carrying a detected pause are scored on their
// pre-pause duration like any other phase; an empty set scores 0.
func SetScore(phases []models.RepPhase, targets Targets) float64 {
	if len(phases) == 0 {
		return 0
	}
	var sum float64
	for _, p := range phases {
		sum += PhaseScore(p.Duration, targets.For(p.Kind))
	}
	return sum / float64(len(phases))
}

// SplitTimes returns per-phase durations for the trainer view. The athlete
// surface exposes only the aggregate SetScore.
type Split struct {
	Kind     models.PhaseKind `json:"kind"`
	Duration time.Duration    `json:"duration"`
	Score    float64          `json:"score"`
}

// Splits computes live per-phase split times with individual scores.
func Splits(phases []models.RepPhase, targets Targets) []Split {
	out := make([]Split, len(phases))
	for i, p := range phases {
		out[i] = Split{Kind: p.Kind, Duration: p.Duration, Score: PhaseScore(p.Duration, targets.For(p.Kind))}
	}
	return out
}
