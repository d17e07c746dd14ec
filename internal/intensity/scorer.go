// Package intensity combines tempo, motion quality, post-set feedback, and
// the strain modifier into the published per-set score.
package intensity

import (
	"github.com/meltforce/setforge/internal/models"
)

// Formula weights. The strain term is the step modifier scaled to 0-100.
const (
	weightTempo       = 0.30
	weightSmoothness  = 0.25
	weightConsistency = 0.20
	weightFeedback    = 0.15
	weightStrain      = 0.10

	// NeutralFeedback is the documented contribution when the feedback
	// window elapses without an answer.
	NeutralFeedback = 75.0

	// easyKillerReduction is the fraction removed from the locked score on
	// "easy, killer", the midpoint of the allowed 10-15% band.
	easyKillerReduction = 0.125
)

// Components are the per-set inputs to the weighted sum. Availability flags
// drive renormalization when a sensor family was absent: the weighted sum is
// recomputed over the available terms only and the result is flagged
// estimated rather than silently diluted by zeros.
type Components struct {
	Tempo          float64
	Smoothness     float64
	Consistency    float64
	StrainModifier float64 // step modifier, 1.0 / 0.95 / 0.85

	MotionAvail bool // tempo, smoothness, consistency are real
	StrainAvail bool // modifier derived from a real strain signal
}

// Result is the computed pair of published scores.
type Result struct {
	Trainer   float64 `json:"trainer"` // uncapped
	User      float64 `json:"user"`    // min(trainer, 100)
	Estimated bool    `json:"estimated"`
}

// Score computes the pre-feedback weighted sum. The feedback term always
// contributes its neutral value here; feedback overrides are applied to the
// locked score by ApplyFeedback.
func Score(c Components) Result {
	type term struct {
		weight float64
		value  float64
		avail  bool
	}
	terms := []term{
		{weightTempo, c.Tempo, c.MotionAvail},
		{weightSmoothness, c.Smoothness, c.MotionAvail},
		{weightConsistency, c.Consistency, c.MotionAvail},
		{weightFeedback, NeutralFeedback, true},
		{weightStrain, c.StrainModifier * 100, c.StrainAvail},
	}

	// Weights sum to 1.0, so dividing by the available mass renormalizes a
	// degraded set back onto the same scale.
	var sum, totalWeight float64
	estimated := false
	for _, t := range terms {
		if !t.avail {
			estimated = true
			continue
		}
		sum += t.weight * t.value
		totalWeight += t.weight
	}
	if totalWeight == 0 {
		return Result{Estimated: true}
	}

	trainer := sum / totalWeight
	return Result{Trainer: trainer, User: capUser(trainer), Estimated: estimated}
}

// ApplyFeedback applies the post-set override to the locked trainer score:
// "easy, killer" strictly reduces it by 12.5% of its pre-feedback value,
// "challenge" sets it to exactly 100 regardless of prior value, and no
// feedback leaves it unchanged.
func ApplyFeedback(r Result, fb models.Feedback) Result {
	switch fb {
	case models.FeedbackEasyKiller:
		r.Trainer = r.Trainer * (1 - easyKillerReduction)
	case models.FeedbackChallenge:
		r.Trainer = 100
	}
	r.User = capUser(r.Trainer)
	return r
}

func capUser(trainer float64) float64 {
	if trainer > 100 {
		return 100
	}
	if trainer < 0 {
		return 0
	}
	return trainer
}
