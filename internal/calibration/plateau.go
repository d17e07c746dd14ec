package calibration

import (
	"errors"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

// Plateau-test guardrails. The test is a low-load tempo experiment and is
// only allowed inside these bounds.
const (
	plateauWeightShare    = 0.40 // of calibrated 1RM
	plateauWeightShareMin = 0.30
	plateauWeightShareMax = 0.50

	plateauRepsMin, plateauRepsMax = 3, 6
	plateauSetsMin, plateauSetsMax = 2, 4

	plateauTUTMin = 30 * time.Second
	plateauTUTMax = 60 * time.Second

	plateauEccentricShare = 0.70

	// plateauMinWeek is the earliest program week a plateau test may run:
	// the loop needs a full calibration cycle behind it first.
	plateauMinWeek = 5
)

var (
	// ErrPlateauCapability is returned when the required hardware is absent.
	ErrPlateauCapability = errors.New("calibration: plateau test needs wearable and headphones")
	// ErrPlateauBounds is returned when a requested override leaves the
	// guardrail envelope.
	ErrPlateauBounds = errors.New("calibration: plateau parameters outside guardrails")
	// ErrNoPlateau is returned when the weekly history does not show stalled
	// progress, or there is not enough of it yet.
	ErrNoPlateau = errors.New("calibration: progress has not plateaued")
)

// Capabilities lists the hardware the plateau test depends on.
type Capabilities struct {
	Wearable   bool
	Headphones bool
}

// PlanPlateauTest builds a guarded plateau-test session from the calibrated
// 1RM. The test only opens on evidence of stalled progress: the weekly best
// intensities must satisfy DetectPlateau and the program must be past its
// calibration weeks. Fails without both a wearable (strain monitoring) and
// headphones (haptic pulse cues).
func (e *Engine) PlanPlateauTest(now time.Time, caps Capabilities, weeklyBest []float64) (*models.PlateauTestSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !caps.Wearable || !caps.Headphones {
		return nil, ErrPlateauCapability
	}
	if e.state.Week < plateauMinWeek || !DetectPlateau(weeklyBest) {
		return nil, ErrNoPlateau
	}
	if e.state.OneRepMaxKg <= 0 {
		return nil, ErrNoOneRepMax
	}

	sess := &models.PlateauTestSession{
		ExerciseID:       e.state.ExerciseID,
		WeightKg:         e.state.OneRepMaxKg * plateauWeightShare,
		Reps:             5,
		Sets:             3,
		TimeUnderTension: 45 * time.Second,
		EccentricShare:   plateauEccentricShare,
		ConcentricShare:  1 - plateauEccentricShare,
		StartedAt:        now,
	}
	if err := validatePlateau(sess, e.state.OneRepMaxKg); err != nil {
		return nil, err
	}
	e.state.Mode = models.ModePlateauTest
	e.state.UpdatedAt = now
	return sess, nil
}

func validatePlateau(s *models.PlateauTestSession, oneRM float64) error {
	share := s.WeightKg / oneRM
	switch {
	case share < plateauWeightShareMin || share > plateauWeightShareMax,
		s.Reps < plateauRepsMin || s.Reps > plateauRepsMax,
		s.Sets < plateauSetsMin || s.Sets > plateauSetsMax,
		s.TimeUnderTension < plateauTUTMin || s.TimeUnderTension > plateauTUTMax:
		return ErrPlateauBounds
	}
	return nil
}

// ObservePlateau checks abort conditions during a plateau-test set. An abort
// rolls the exercise straight back to its last stable parameters and is
// surfaced to the session as a safety stop.
func (e *Engine) ObservePlateau(now time.Time, sess *models.PlateauTestSession, strain float64, formUnstable bool) (safetyStop bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sess.Aborted() {
		return true
	}
	switch {
	case strain > abortStrain:
		sess.AbortReason = "strain over abort threshold"
	case formUnstable:
		sess.AbortReason = "form instability"
	default:
		return false
	}

	e.state.Params = e.state.LastStable
	e.state.Mode = models.ModeStable
	e.state.UpdatedAt = now
	e.log.Warn("plateau test aborted",
		"exercise", e.state.ExerciseID,
		"reason", sess.AbortReason)
	return true
}

// FinishPlateau closes a completed (non-aborted) plateau test and returns
// the loop to stable mode.
func (e *Engine) FinishPlateau(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Mode == models.ModePlateauTest {
		e.state.Mode = models.ModeStable
		e.state.UpdatedAt = now
	}
}
