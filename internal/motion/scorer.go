// Package motion derives the motion-smoothness and rep-consistency
// sub-scores from the per-tick accelerometer stream and the classified
// phases. Both scores are 0-100, deterministic, and monotonic: smoother or
// more consistent motion never scores lower.
package motion

import (
	"math"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

const (
	// jerkScale is the RMS jerk (m/s³) at which smoothness halves.
	jerkScale = 40.0
	// cvScale is the coefficient-of-variation weight at which consistency
	// halves: CV of 0.2 across the set scores 50.
	cvScale = 5.0
)

// Scorer accumulates one set's worth of motion statistics.
type Scorer struct {
	lastMag float64
	lastAt  time.Time
	warmed  bool

	sumSqJerk float64
	jerkN     int

	durations []float64
	roms      []float64
}

// NewScorer creates an empty Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// ObserveAccel feeds one accelerometer tick. Jerk is the tick-to-tick change
// in acceleration magnitude over dt.
func (s *Scorer) ObserveAccel(t time.Time, accel models.Vec3) {
	mag := math.Sqrt(accel.X*accel.X + accel.Y*accel.Y + accel.Z*accel.Z)
	if !s.warmed {
		s.lastMag = mag
		s.lastAt = t
		s.warmed = true
		return
	}
	dt := t.Sub(s.lastAt).Seconds()
	if dt > 0 && dt <= 1 {
		jerk := (mag - s.lastMag) / dt
		s.sumSqJerk += jerk * jerk
		s.jerkN++
	}
	s.lastMag = mag
	s.lastAt = t
}

// ObservePhase records a completed phase and its range-of-motion proxy
// (peak axial speed during the phase).
func (s *Scorer) ObservePhase(p models.RepPhase, rom float64) {
	s.durations = append(s.durations, p.Duration.Seconds())
	s.roms = append(s.roms, rom)
}

// Smoothness is the inverse of RMS jerk across the set: 100 for perfectly
// steady acceleration, halving at jerkScale.
func (s *Scorer) Smoothness() float64 {
	if s.jerkN == 0 {
		return 0
	}
	rms := math.Sqrt(s.sumSqJerk / float64(s.jerkN))
	return 100 / (1 + rms/jerkScale)
}

// Consistency is the inverse of variance in phase duration and range of
// motion across the set, averaged over both dimensions.
func (s *Scorer) Consistency() float64 {
	if len(s.durations) == 0 {
		return 0
	}
	cv := (coefVariation(s.durations) + coefVariation(s.roms)) / 2
	return 100 / (1 + cvScale*cv)
}

// Reset clears per-set state.
func (s *Scorer) Reset() {
	*s = Scorer{}
}

// coefVariation returns stddev/mean, or 0 for degenerate input. A single
// observation has no variance by definition.
func coefVariation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean == 0 {
		return 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(xs))) / math.Abs(mean)
}
