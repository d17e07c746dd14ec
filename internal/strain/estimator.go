// Package strain computes the ephemeral 0-100 physiological strain value.
// Readings are tick-scoped and on-device only; nothing in this package is
// ever persisted or transmitted.
package strain

import (
	"math"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

// Formula weights. Each term is normalized to 0-100 against the personal
// baseline before weighting.
const (
	weightHRRise        = 0.4
	weightSpO2Drop      = 0.3
	weightRecoveryDelay = 0.3

	// spo2DropScale is the SpO2 drop (percentage points below the personal
	// resting value) that maps to a full 100 on the drop term.
	spo2DropScale = 8.0
)

// Baseline holds the personal calibration the terms normalize against.
type Baseline struct {
	RestingHR   float64 `json:"resting_hr"`
	MaxHR       float64 `json:"max_hr"`
	RestingSpO2 float64 `json:"resting_spo2"`
	// RecoveryHalfLife is how quickly this athlete's heart rate is expected
	// to fall back toward resting once effort stops.
	RecoveryHalfLife time.Duration `json:"recovery_half_life"`
}

// DefaultBaseline returns population defaults used until the first
// calibration session establishes personal values.
func DefaultBaseline() Baseline {
	return Baseline{
		RestingHR:        60,
		MaxHR:            190,
		RestingSpO2:      97,
		RecoveryHalfLife: 60 * time.Second,
	}
}

// Estimator computes a StrainReading per tick from a rolling sample window.
type Estimator struct {
	baseline Baseline

	peakHR   float64
	peakAt   time.Time
	lastHR   float64
	readings []models.StrainReading // small trailing window for delta queries
}

// trailingReadings bounds the delta-query window: 5s at 100ms ticks.
const trailingReadings = 50

// NewEstimator creates an Estimator against the given baseline.
func NewEstimator(b Baseline) *Estimator {
	return &Estimator{baseline: b}
}

// Estimate computes the strain for one fused sample. Missing HR or SpO2
// contributes neutral zero and marks the reading estimated. Frozen samples
// return the previous reading unchanged: no recompute until signal resumes.
func (e *Estimator) Estimate(s models.SensorSample) models.StrainReading {
	if s.Frozen && len(e.readings) > 0 {
		held := e.readings[len(e.readings)-1]
		held.Time = s.Time
		e.record(held)
		return held
	}

	r := models.StrainReading{Time: s.Time}

	var hrRise, spo2Drop, recovery float64
	if s.HRAvail {
		hrRise = e.hrRiseTerm(s)
		recovery = e.recoveryDelayTerm(s)
	} else {
		r.Estimated = true
	}
	if s.SpO2Avail {
		spo2Drop = e.spo2DropTerm(s.SpO2)
	} else {
		r.Estimated = true
	}

	r.Value = clamp(weightHRRise*hrRise+weightSpO2Drop*spo2Drop+weightRecoveryDelay*recovery, 0, 100)
	e.record(r)
	return r
}

// hrRiseTerm maps the current heart-rate-reserve fraction to 0-100.
func (e *Estimator) hrRiseTerm(s models.SensorSample) float64 {
	reserve := e.baseline.MaxHR - e.baseline.RestingHR
	if reserve <= 0 {
		return 0
	}
	if s.HeartRate > e.peakHR {
		e.peakHR = s.HeartRate
		e.peakAt = s.Time
	}
	e.lastHR = s.HeartRate
	return clamp((s.HeartRate-e.baseline.RestingHR)/reserve*100, 0, 100)
}

// spo2DropTerm maps the drop below resting SpO2 to 0-100.
func (e *Estimator) spo2DropTerm(spo2 float64) float64 {
	drop := e.baseline.RestingSpO2 - spo2
	if drop <= 0 {
		return 0
	}
	return clamp(drop/spo2DropScale*100, 0, 100)
}

// recoveryDelayTerm scores how far the observed heart-rate decline lags the
// expected exponential recovery from the session peak. Zero while still at
// or climbing toward peak, 100 when no recovery has happened long after it
// was expected.
func (e *Estimator) recoveryDelayTerm(s models.SensorSample) float64 {
	if e.peakHR <= e.baseline.RestingHR || e.peakAt.IsZero() {
		return 0
	}
	dt := s.Time.Sub(e.peakAt)
	if dt <= 0 {
		return 0
	}
	halfLives := dt.Seconds() / e.baseline.RecoveryHalfLife.Seconds()
	expectedDrop := (e.peakHR - e.baseline.RestingHR) * (1 - math.Pow(0.5, halfLives))
	if expectedDrop <= 0 {
		return 0
	}
	observedDrop := e.peakHR - s.HeartRate
	if observedDrop < 0 {
		observedDrop = 0
	}
	return clamp((1-observedDrop/expectedDrop)*100, 0, 100)
}

// ResetPeak clears the recovery reference, called at the start of each set so
// the previous set's peak does not leak into the new recovery curve.
func (e *Estimator) ResetPeak() {
	e.peakHR = 0
	e.peakAt = time.Time{}
}

func (e *Estimator) record(r models.StrainReading) {
	e.readings = append(e.readings, r)
	if len(e.readings) > trailingReadings {
		e.readings = e.readings[len(e.readings)-trailingReadings:]
	}
}

// Latest returns the most recent reading, if any.
func (e *Estimator) Latest() (models.StrainReading, bool) {
	if len(e.readings) == 0 {
		return models.StrainReading{}, false
	}
	return e.readings[len(e.readings)-1], true
}

// DropWithin reports the relative strain fall (0-1) over the trailing window
// ending at the latest reading. Used by the forgotten-set watchdog's
// ">10% fall within 3 seconds" trigger.
func (e *Estimator) DropWithin(window time.Duration) float64 {
	if len(e.readings) == 0 {
		return 0
	}
	latest := e.readings[len(e.readings)-1]
	cutoff := latest.Time.Add(-window)

	var peak float64
	for _, r := range e.readings {
		if r.Time.Before(cutoff) {
			continue
		}
		if r.Value > peak {
			peak = r.Value
		}
	}
	if peak <= 0 {
		return 0
	}
	return (peak - latest.Value) / peak
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
