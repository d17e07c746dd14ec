package models

import (
	"time"

	"github.com/google/uuid"
)

// Vec3 is a raw 3-axis sensor reading (accelerometer in m/s², gyroscope in °/s).
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// SensorSample is one normalized per-tick reading fused from all sources.
// Tick-scoped: samples live in the session ring buffer and are discarded.
// Deliberately carries no serialization tags: raw samples never leave the
// device, and the privacy gate rejects any attempt to export one.
type SensorSample struct {
	Time        time.Time
	HeartRate   float64
	SpO2        float64
	Accel       Vec3
	Gyro        Vec3
	HRAvail     bool
	SpO2Avail   bool
	MotionAvail bool
	Frozen      bool
	Stale       bool
}

// StrainReading is the ephemeral per-tick physiological strain estimate.
// On-device only, never durable, never transmitted raw.
type StrainReading struct {
	Time      time.Time
	Value     float64 // 0-100
	Estimated bool
}

// PhaseKind classifies one segment of a repetition.
type PhaseKind string

const (
	PhaseConcentric PhaseKind = "concentric"
	PhaseEccentric  PhaseKind = "eccentric"
)

// RepPhase is one classified concentric/eccentric segment.
type RepPhase struct {
	Kind          PhaseKind     `json:"kind"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Duration      time.Duration `json:"duration"`
	PauseDetected bool          `json:"pause_detected"`
}

// SetRecord is the published per-set result. Created at set completion,
// mutable only during the post-set feedback window, then locked.
type SetRecord struct {
	ID               uuid.UUID `json:"id"`
	SessionID        uuid.UUID `json:"session_id"`
	UserID           int       `json:"user_id"`
	ExerciseID       string    `json:"exercise_id"`
	SetIndex         int       `json:"set_index"`
	Reps             int       `json:"reps"`
	WeightKg         float64   `json:"weight_kg"`
	TempoScore       float64   `json:"tempo_score"`
	Smoothness       float64   `json:"motion_smoothness"`
	Consistency      float64   `json:"rep_consistency"`
	Feedback         Feedback  `json:"feedback"`
	StrainModifier   float64   `json:"strain_modifier"`
	UserIntensity    float64   `json:"user_intensity"`    // capped at 100
	TrainerIntensity float64   `json:"trainer_intensity"` // uncapped
	Estimated        bool      `json:"estimated"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	LockedAt         time.Time `json:"locked_at"`
}

// Locked reports whether the post-set feedback window has closed.
func (r *SetRecord) Locked() bool {
	return !r.LockedAt.IsZero()
}

// RestPeriod is the outcome of one rest countdown between sets.
type RestPeriod struct {
	SetID               uuid.UUID     `json:"set_id"`
	PlannedDuration     time.Duration `json:"planned_duration"`
	ActualDuration      time.Duration `json:"actual_duration"`
	AutoExtended        bool          `json:"auto_extended"`
	SuppressedLifePause bool          `json:"suppressed_life_pause"`
	StartedAt           time.Time     `json:"started_at"`
	EndedAt             time.Time     `json:"ended_at"`
}

// PromptResponse is the user's answer to a forgotten-set prompt.
type PromptResponse string

const (
	PromptYes     PromptResponse = "yes"
	PromptNo      PromptResponse = "no"
	PromptTimeout PromptResponse = "timeout"
)

// ForgottenSetEvent records one watchdog trigger and its resolution.
type ForgottenSetEvent struct {
	ID          uuid.UUID      `json:"id"`
	SessionID   uuid.UUID      `json:"session_id"`
	TriggeredAt time.Time      `json:"triggered_at"`
	StrainDelta float64        `json:"strain_delta"`
	Erraticism  float64        `json:"erraticism"`
	Response    PromptResponse `json:"response"`
	Action      string         `json:"action"`
}

// SessionMode selects how a workout session is driven.
type SessionMode string

const (
	ModeFree        SessionMode = "free"
	ModeCalibration SessionMode = "calibration"
	// ModeSessionPlateau drives a guarded plateau-test workout. Distinct
	// from the calibration-loop mode of the same wire value.
	ModeSessionPlateau SessionMode = "plateau_test"
)
