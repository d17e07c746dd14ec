package models

import "time"

// CalibrationMode is the weekly control-loop mode for one exercise.
type CalibrationMode string

const (
	// ModeFullCalibration runs in week 1: parameters adjust after every set
	// until intensity stabilizes near target with strain under the ceiling.
	ModeFullCalibration CalibrationMode = "full_calibration"
	// ModeRecalibrateFirstSet runs on the first session of a later week:
	// only the first set is recalibrated, and only on >5% deviation.
	ModeRecalibrateFirstSet CalibrationMode = "recalibrate_first_set"
	// ModeSingleTweak runs in weeks 2-4: exactly one parameter changes per week.
	ModeSingleTweak CalibrationMode = "single_tweak"
	// ModePlateauTest is the guarded tempo experiment entered on stalled progress.
	ModePlateauTest CalibrationMode = "plateau_test"
	// ModeStable means the exercise converged and parameters are held.
	ModeStable CalibrationMode = "stable"
)

// TrainingParams are the per-exercise knobs the calibration loop adjusts.
type TrainingParams struct {
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	VolumeKg float64 `json:"volume_kg"`
	TempoSec float64 `json:"tempo_sec"` // target phase duration
}

// CalibrationState is the durable per-(user, exercise, week) controller state.
type CalibrationState struct {
	UserID          int             `json:"user_id"`
	ExerciseID      string          `json:"exercise_id"`
	Week            int             `json:"week"`
	Mode            CalibrationMode `json:"mode"`
	Params          TrainingParams  `json:"params"`
	LastStable      TrainingParams  `json:"last_stable"`
	TargetIntensity float64         `json:"target_intensity"` // ~98
	StrainCeiling   float64         `json:"strain_ceiling"`   // ~88
	LastDelta       string          `json:"last_delta"`
	OneRepMaxKg     float64         `json:"one_rep_max_kg"`
	NeedsReview     bool            `json:"needs_review"`
	PRPredictedAt   time.Time       `json:"pr_predicted_at,omitzero"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PlateauTestSession is the guardrail snapshot for one plateau-test run.
type PlateauTestSession struct {
	ExerciseID       string        `json:"exercise_id"`
	WeightKg         float64       `json:"weight_kg"`          // 30-50% of 1RM, default 40%
	Reps             int           `json:"reps"`               // 3-6
	Sets             int           `json:"sets"`               // 2-4
	TimeUnderTension time.Duration `json:"time_under_tension"` // 30-60s per set
	EccentricShare   float64       `json:"eccentric_share"`    // 0.70
	ConcentricShare  float64       `json:"concentric_share"`   // 0.30
	AbortReason      string        `json:"abort_reason,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
}

// Aborted reports whether the plateau test was stopped by a guardrail.
func (p *PlateauTestSession) Aborted() bool { return p.AbortReason != "" }

// TempoTargets splits the planned per-rep time under tension into the
// eccentric and concentric target durations.
func (p *PlateauTestSession) TempoTargets() (eccentric, concentric time.Duration) {
	if p.Reps <= 0 {
		return 0, 0
	}
	perRep := p.TimeUnderTension / time.Duration(p.Reps)
	eccentric = time.Duration(float64(perRep) * p.EccentricShare)
	return eccentric, perRep - eccentric
}
