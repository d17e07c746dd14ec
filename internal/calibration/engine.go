// Package calibration implements the weekly per-exercise control loop that
// tunes training parameters toward a target intensity under a strain ceiling.
package calibration

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

const (
	// settleBand is how close trainer intensity must sit to the target for a
	// set to count as settled.
	settleBand = 2.0
	// settleStreak is how many consecutive settled sets lock the parameters.
	settleStreak = 2
	// maxAdjustRun is the non-convergence bound: this many consecutive
	// adjusted sets without settling falls back to the last stable
	// parameters and flags the exercise for manual review.
	maxAdjustRun = 8

	// firstSetDeviation is the relative intensity deviation that justifies
	// touching the first set of a later week.
	firstSetDeviation = 0.05

	volumeStepDown = 0.05  // strain over ceiling
	volumeStepTrim = 0.025 // intensity drifting off target

	// abortStrain is the hard stop: any set that crosses it ends the
	// workout and reverts to the last stable parameters, in every mode.
	abortStrain = 95.0

	// predictionCycle spaces PR predictions: at most one per 5-week block.
	predictionCycle = 35 * 24 * time.Hour
)

var (
	// ErrTrainerOnly is returned when a PR prediction is requested without
	// the trainer role.
	ErrTrainerOnly = errors.New("calibration: pr prediction is trainer-only")
	// ErrPredictionCooldown is returned when a PR prediction was already
	// issued this cycle.
	ErrPredictionCooldown = errors.New("calibration: pr already predicted this cycle")
	// ErrNoOneRepMax is returned when no calibrated 1RM exists yet.
	ErrNoOneRepMax = errors.New("calibration: no calibrated 1RM")
)

// SetResult is the read-only snapshot of one completed set that the engine
// evaluates. The engine never reaches back into live session state.
type SetResult struct {
	TrainerIntensity float64
	Strain           float64
	FormUnstable     bool
}

// Adjustment describes a single parameter change.
type Adjustment struct {
	Param  string  `json:"param"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Reason string  `json:"reason"`
}

func (a Adjustment) String() string {
	return fmt.Sprintf("%s %.2f->%.2f (%s)", a.Param, a.From, a.To, a.Reason)
}

// Decision is the engine's verdict after one set.
type Decision struct {
	Adjusted    bool
	Adjustment  Adjustment
	Settled     bool
	RolledBack  bool
	NeedsReview bool

	// SafetyStop means the set crossed a hard abort condition and the
	// workout must end now. StopReason carries the condition that fired.
	SafetyStop bool
	StopReason string
}

// Engine drives the calibration loop for one (user, exercise, week). Calls
// are serialized per exercise by the session layer; the mutex guards against
// concurrent API reads of the state snapshot.
type Engine struct {
	mu    sync.Mutex
	state models.CalibrationState

	setIndex    int // sets seen this session
	adjustRun   int // consecutive adjusted sets
	inBandRun   int // consecutive settled sets
	weekTweaked bool

	log *slog.Logger
}

// NewEngine resumes the loop from a persisted state.
func NewEngine(state models.CalibrationState, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{state: state, log: log}
	e.weekTweaked = state.Mode == models.ModeSingleTweak && state.LastDelta != ""
	return e
}

// State returns a copy of the current calibration state.
func (e *Engine) State() models.CalibrationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BeginSession resets per-session counters and picks the mode for the week.
// firstOfWeek marks the first session in a fresh training week.
func (e *Engine) BeginSession(week int, firstOfWeek bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setIndex = 0
	e.adjustRun = 0
	e.inBandRun = 0

	if week != e.state.Week {
		e.state.Week = week
		e.state.LastDelta = ""
		e.weekTweaked = false
	}

	switch {
	case e.state.Mode == models.ModePlateauTest:
		// Plateau test runs until finished or aborted.
	case week <= 1:
		e.state.Mode = models.ModeFullCalibration
	case firstOfWeek:
		e.state.Mode = models.ModeRecalibrateFirstSet
	default:
		e.state.Mode = models.ModeSingleTweak
	}
}

// EvaluateSet feeds one completed set through the loop and returns the
// engine's decision. Adjustments take effect for the next set.
func (e *Engine) EvaluateSet(now time.Time, res SetResult) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setIndex++
	var d Decision

	// Hard guardrail ahead of any mode logic: dangerous strain or unstable
	// form rolls the exercise straight back to its last stable parameters
	// and stops the workout. Ordinary corrections never see such a set.
	if res.Strain > abortStrain || res.FormUnstable {
		reason := "strain over abort threshold"
		if res.Strain <= abortStrain {
			reason = "form instability"
		}
		e.state.Params = e.state.LastStable
		e.state.Mode = models.ModeStable
		e.state.UpdatedAt = now
		e.adjustRun = 0
		e.inBandRun = 0
		e.log.Warn("set aborted, reverting to last stable",
			"exercise", e.state.ExerciseID,
			"reason", reason)
		return Decision{SafetyStop: true, StopReason: reason, RolledBack: true}
	}

	switch e.state.Mode {
	case models.ModeFullCalibration:
		d = e.evalFull(res)
	case models.ModeRecalibrateFirstSet:
		d = e.evalFirstSet(res)
		// Only the first set is eligible; the rest of the session holds.
		e.state.Mode = models.ModeSingleTweak
	case models.ModeSingleTweak:
		d = e.evalSingleTweak(res)
	case models.ModeStable, models.ModePlateauTest:
		// Stable holds parameters; plateau sets go through ObservePlateau.
	}

	if d.Adjusted {
		e.adjustRun++
		e.inBandRun = 0
		e.state.LastDelta = d.Adjustment.String()
		e.log.Info("calibration adjust",
			"exercise", e.state.ExerciseID,
			"param", d.Adjustment.Param,
			"to", d.Adjustment.To,
			"reason", d.Adjustment.Reason)
	}
	if d.Settled {
		e.adjustRun = 0
	}

	if e.adjustRun >= maxAdjustRun {
		e.state.Params = e.state.LastStable
		e.state.NeedsReview = true
		e.state.Mode = models.ModeStable
		e.adjustRun = 0
		d.RolledBack = true
		d.NeedsReview = true
		e.log.Warn("calibration did not converge, reverting to last stable",
			"exercise", e.state.ExerciseID)
	}

	e.state.UpdatedAt = now
	return d
}

// evalFull adjusts after every set until the intensity settles inside the
// band with strain under the ceiling.
func (e *Engine) evalFull(res SetResult) Decision {
	if adj, ok := e.correction(res); ok {
		e.applyVolume(adj.To)
		return Decision{Adjusted: true, Adjustment: adj}
	}

	e.inBandRun++
	if e.inBandRun >= settleStreak {
		e.state.LastStable = e.state.Params
		e.state.Mode = models.ModeStable
		return Decision{Settled: true}
	}
	return Decision{}
}

// evalFirstSet recalibrates only on a >5% deviation from target.
func (e *Engine) evalFirstSet(res SetResult) Decision {
	if e.setIndex != 1 {
		return Decision{}
	}
	dev := res.TrainerIntensity - e.state.TargetIntensity
	if dev < 0 {
		dev = -dev
	}
	if dev/e.state.TargetIntensity <= firstSetDeviation && res.Strain <= e.state.StrainCeiling {
		return Decision{Settled: true}
	}
	adj, ok := e.correction(res)
	if !ok {
		return Decision{Settled: true}
	}
	e.applyVolume(adj.To)
	// The recalibration counts as the week's single change.
	e.weekTweaked = true
	return Decision{Adjusted: true, Adjustment: adj}
}

// evalSingleTweak allows exactly one parameter change per week.
func (e *Engine) evalSingleTweak(res SetResult) Decision {
	if e.weekTweaked {
		if e.inBand(res) {
			return Decision{Settled: true}
		}
		return Decision{}
	}
	adj, ok := e.correction(res)
	if !ok {
		return Decision{Settled: true}
	}
	e.applyVolume(adj.To)
	e.weekTweaked = true
	return Decision{Adjusted: true, Adjustment: adj}
}

// correction derives the volume correction for an off-band set, if any.
// Strain over the ceiling wins over intensity drift.
func (e *Engine) correction(res SetResult) (Adjustment, bool) {
	from := e.state.Params.VolumeKg
	switch {
	case res.Strain > e.state.StrainCeiling:
		return Adjustment{
			Param:  "volume_kg",
			From:   from,
			To:     from * (1 - volumeStepDown),
			Reason: "strain over ceiling",
		}, true
	case res.TrainerIntensity < e.state.TargetIntensity-settleBand:
		return Adjustment{
			Param:  "volume_kg",
			From:   from,
			To:     from * (1 - volumeStepTrim),
			Reason: "intensity below target",
		}, true
	case res.TrainerIntensity > e.state.TargetIntensity+settleBand:
		return Adjustment{
			Param:  "volume_kg",
			From:   from,
			To:     from * (1 + volumeStepTrim),
			Reason: "intensity above target",
		}, true
	}
	return Adjustment{}, false
}

func (e *Engine) inBand(res SetResult) bool {
	if res.Strain > e.state.StrainCeiling {
		return false
	}
	dev := res.TrainerIntensity - e.state.TargetIntensity
	return dev >= -settleBand && dev <= settleBand
}

func (e *Engine) applyVolume(to float64) {
	e.state.Params.VolumeKg = to
}

// DetectPlateau reports whether the weekly best intensities show no
// meaningful improvement across consecutive weeks. Needs at least three
// weeks of history.
func DetectPlateau(weeklyBest []float64) bool {
	if len(weeklyBest) < 3 {
		return false
	}
	const epsilon = 0.5
	for i := 1; i < len(weeklyBest); i++ {
		if weeklyBest[i] > weeklyBest[i-1]+epsilon {
			return false
		}
	}
	return true
}

// PredictPR estimates a new one-rep max from the current stable parameters.
// Trainer-gated, at most once per cycle.
func (e *Engine) PredictPR(now time.Time, trainer bool) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !trainer {
		return 0, ErrTrainerOnly
	}
	if !e.state.PRPredictedAt.IsZero() && now.Sub(e.state.PRPredictedAt) < predictionCycle {
		return 0, ErrPredictionCooldown
	}
	est := EstimateOneRepMax(e.state.Params.VolumeKg, e.state.Params.Reps)
	if est <= 0 {
		return 0, ErrNoOneRepMax
	}
	e.state.PRPredictedAt = now
	if est > e.state.OneRepMaxKg {
		e.state.OneRepMaxKg = est
	}
	return est, nil
}

// NextPredictionAllowed returns when the next PR prediction may be issued
// after the given one. Zero in means no prediction was made yet.
func NextPredictionAllowed(last time.Time) time.Time {
	if last.IsZero() {
		return time.Time{}
	}
	return last.Add(predictionCycle)
}
