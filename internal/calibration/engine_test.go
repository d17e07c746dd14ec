package calibration

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

var now = time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)

func newState() models.CalibrationState {
	return models.CalibrationState{
		UserID:          1,
		ExerciseID:      "bench_press",
		Week:            1,
		Params:          models.TrainingParams{Sets: 3, Reps: 8, VolumeKg: 60, TempoSec: 2},
		LastStable:      models.TrainingParams{Sets: 3, Reps: 8, VolumeKg: 55, TempoSec: 2},
		TargetIntensity: 98,
		StrainCeiling:   88,
		OneRepMaxKg:     100,
	}
}

// TestOneRepMaxFormulas pins the Brzycki and Epley estimates.
func TestOneRepMaxFormulas(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		reps   int
		fn     func(float64, int) float64
		want   float64
	}{
		{"brzycki 100x5", 100, 5, Brzycki, 112.5},
		{"epley 100x5", 100, 5, Epley, 100 * (1 + 5.0/30.0)},
		{"brzycki zero reps", 100, 0, Brzycki, 0},
		{"epley zero reps", 100, 0, Epley, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.weight, tt.reps); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	// Average of the two, and the single-rep identity.
	want := (112.5 + 100*(1+5.0/30.0)) / 2
	if got := EstimateOneRepMax(100, 5); math.Abs(got-want) > 1e-9 {
		t.Errorf("EstimateOneRepMax(100,5) = %v, want %v", got, want)
	}
	if got := EstimateOneRepMax(100, 1); got != 100 {
		t.Errorf("EstimateOneRepMax(100,1) = %v, want 100", got)
	}
}

// TestFullCalibrationAdjustsUntilSettled runs a week-1 loop: two off-target
// sets get corrected, then two in-band sets lock the parameters.
func TestFullCalibrationAdjustsUntilSettled(t *testing.T) {
	e := NewEngine(newState(), nil)
	e.BeginSession(1, true)

	d := e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 80})
	if !d.Adjusted || d.Adjustment.Reason != "intensity below target" {
		t.Fatalf("set 1 decision = %+v, want intensity trim", d)
	}
	if got := e.State().Params.VolumeKg; math.Abs(got-60*0.975) > 1e-9 {
		t.Errorf("volume after trim = %v, want %v", got, 60*0.975)
	}

	d = e.EvaluateSet(now, SetResult{TrainerIntensity: 97, Strain: 92})
	if !d.Adjusted || d.Adjustment.Reason != "strain over ceiling" {
		t.Fatalf("set 2 decision = %+v, want strain reduction", d)
	}

	// Two consecutive in-band sets settle the loop.
	if d = e.EvaluateSet(now, SetResult{TrainerIntensity: 98, Strain: 82}); d.Adjusted || d.Settled {
		t.Fatalf("set 3 decision = %+v, want plain in-band", d)
	}
	if d = e.EvaluateSet(now, SetResult{TrainerIntensity: 97.5, Strain: 83}); !d.Settled {
		t.Fatalf("set 4 decision = %+v, want settled", d)
	}

	st := e.State()
	if st.Mode != models.ModeStable {
		t.Errorf("mode = %v, want %v", st.Mode, models.ModeStable)
	}
	if st.LastStable != st.Params {
		t.Error("settling did not record the stable parameters")
	}
}

// TestStrainCeilingWinsOverIntensity checks the correction priority when a
// set is both under target and over the ceiling.
func TestStrainCeilingWinsOverIntensity(t *testing.T) {
	e := NewEngine(newState(), nil)
	e.BeginSession(1, true)

	d := e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 93})
	if d.Adjustment.Reason != "strain over ceiling" {
		t.Errorf("reason = %q, want strain over ceiling", d.Adjustment.Reason)
	}
	if got := e.State().Params.VolumeKg; math.Abs(got-60*0.95) > 1e-9 {
		t.Errorf("volume = %v, want 5%% reduction", got)
	}
}

// TestNonConvergenceFallsBack drives eight consecutive adjustments and
// expects a rollback to last stable plus a review flag.
func TestNonConvergenceFallsBack(t *testing.T) {
	e := NewEngine(newState(), nil)
	e.BeginSession(1, true)

	var d Decision
	for i := 0; i < 8; i++ {
		d = e.EvaluateSet(now, SetResult{TrainerIntensity: 85, Strain: 80})
	}
	if !d.RolledBack || !d.NeedsReview {
		t.Fatalf("decision after 8 adjusted sets = %+v, want rollback+review", d)
	}
	st := e.State()
	if st.Params.VolumeKg != 55 {
		t.Errorf("params = %+v, want last stable volume 55", st.Params)
	}
	if !st.NeedsReview || st.Mode != models.ModeStable {
		t.Errorf("state = mode %v review %v, want stable+review", st.Mode, st.NeedsReview)
	}
}

// TestSettledSetResetsAdjustRun interleaves an in-band set so the
// non-convergence counter restarts.
func TestSettledSetResetsAdjustRun(t *testing.T) {
	e := NewEngine(newState(), nil)
	e.BeginSession(1, true)

	for i := 0; i < 7; i++ {
		e.EvaluateSet(now, SetResult{TrainerIntensity: 85, Strain: 80})
	}
	// In-band twice: settles and clears the run.
	e.EvaluateSet(now, SetResult{TrainerIntensity: 98, Strain: 80})
	d := e.EvaluateSet(now, SetResult{TrainerIntensity: 98, Strain: 80})
	if d.RolledBack {
		t.Fatal("rolled back despite settling before the bound")
	}
	if !d.Settled {
		t.Fatalf("decision = %+v, want settled", d)
	}
}

// TestRecalibrateFirstSet only touches the first set, and only past 5%
// deviation.
func TestRecalibrateFirstSet(t *testing.T) {
	tests := []struct {
		name      string
		intensity float64
		strain    float64
		adjusted  bool
	}{
		{"within 5 percent holds", 95, 80, false},
		{"beyond 5 percent adjusts", 90, 80, true},
		{"strain blowout adjusts", 95, 93, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState()
			st.Week = 2
			e := NewEngine(st, nil)
			e.BeginSession(2, true)

			d := e.EvaluateSet(now, SetResult{TrainerIntensity: tt.intensity, Strain: tt.strain})
			if d.Adjusted != tt.adjusted {
				t.Errorf("first set adjusted = %v, want %v", d.Adjusted, tt.adjusted)
			}
			// Later sets in the session never adjust.
			d = e.EvaluateSet(now, SetResult{TrainerIntensity: 85, Strain: 93})
			if e.State().Mode != models.ModeSingleTweak {
				t.Errorf("mode after first set = %v, want single_tweak", e.State().Mode)
			}
		})
	}
}

// TestSingleTweakOncePerWeek allows exactly one parameter change across a
// week's sessions.
func TestSingleTweakOncePerWeek(t *testing.T) {
	st := newState()
	st.Week = 3
	e := NewEngine(st, nil)
	e.BeginSession(3, false)

	d := e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 80})
	if !d.Adjusted {
		t.Fatal("first off-band set of the week did not tweak")
	}
	d = e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 80})
	if d.Adjusted {
		t.Fatal("second tweak in the same week")
	}

	// A later session in the same week still holds.
	e.BeginSession(3, false)
	d = e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 80})
	if d.Adjusted {
		t.Fatal("tweak leaked into a second session of the week")
	}

	// A new week re-arms the tweak.
	e.BeginSession(4, false)
	d = e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 80})
	if !d.Adjusted {
		t.Fatal("new week did not re-arm the tweak")
	}
}

// TestDetectPlateau checks the stalled-progress predicate.
func TestDetectPlateau(t *testing.T) {
	tests := []struct {
		name   string
		weekly []float64
		want   bool
	}{
		{"improving", []float64{90, 93, 96}, false},
		{"flat", []float64{94, 94.2, 94.1}, true},
		{"declining", []float64{95, 93, 92}, true},
		{"too little history", []float64{94, 94}, false},
		{"late improvement", []float64{94, 94, 97}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPlateau(tt.weekly); got != tt.want {
				t.Errorf("DetectPlateau(%v) = %v, want %v", tt.weekly, got, tt.want)
			}
		})
	}
}

// TestPredictPRGating covers the trainer gate and the per-cycle cooldown.
func TestPredictPRGating(t *testing.T) {
	e := NewEngine(newState(), nil)

	if _, err := e.PredictPR(now, false); !errors.Is(err, ErrTrainerOnly) {
		t.Fatalf("non-trainer err = %v, want ErrTrainerOnly", err)
	}

	est, err := e.PredictPR(now, true)
	if err != nil {
		t.Fatalf("trainer predict failed: %v", err)
	}
	want := EstimateOneRepMax(60, 8)
	if math.Abs(est-want) > 1e-9 {
		t.Errorf("estimate = %v, want %v", est, want)
	}

	// Second prediction inside the cycle is refused.
	if _, err := e.PredictPR(now.Add(7*24*time.Hour), true); !errors.Is(err, ErrPredictionCooldown) {
		t.Fatalf("in-cycle err = %v, want ErrPredictionCooldown", err)
	}
	// After the cycle it is allowed again.
	if _, err := e.PredictPR(now.Add(36*24*time.Hour), true); err != nil {
		t.Fatalf("post-cycle predict failed: %v", err)
	}
}

// TestAbortGuardrailOverridesCorrections rolls straight back to last stable
// in every calibration mode when strain crosses the abort threshold or form
// breaks down, instead of applying an ordinary volume correction.
func TestAbortGuardrailOverridesCorrections(t *testing.T) {
	tests := []struct {
		name        string
		week        int
		firstOfWeek bool
		res         SetResult
	}{
		{"full calibration strain abort", 1, true, SetResult{TrainerIntensity: 90, Strain: 97}},
		{"first set recalibration strain abort", 2, true, SetResult{TrainerIntensity: 97, Strain: 96}},
		{"single tweak form abort", 3, false, SetResult{TrainerIntensity: 98, Strain: 80, FormUnstable: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState()
			st.Week = tt.week
			e := NewEngine(st, nil)
			e.BeginSession(tt.week, tt.firstOfWeek)

			d := e.EvaluateSet(now, tt.res)
			if !d.SafetyStop || d.StopReason == "" {
				t.Fatalf("decision = %+v, want safety stop", d)
			}
			if d.Adjusted {
				t.Error("abort must not count as an ordinary adjustment")
			}
			got := e.State()
			if got.Params.VolumeKg != 55 {
				t.Errorf("params = %+v, want last stable volume 55", got.Params)
			}
			if got.Mode != models.ModeStable {
				t.Errorf("mode = %v, want stable", got.Mode)
			}
		})
	}
}

// TestFiveWeekProgression simulates a five-week program: week one calibrates
// until settled, weeks two through four change exactly one parameter each,
// and the plateau test only opens past week four once the weekly bests have
// stalled.
func TestFiveWeekProgression(t *testing.T) {
	e := NewEngine(newState(), nil)

	// Week 1: full calibration converges after two corrections.
	e.BeginSession(1, true)
	e.EvaluateSet(now, SetResult{TrainerIntensity: 92, Strain: 80})
	e.EvaluateSet(now, SetResult{TrainerIntensity: 95, Strain: 80})
	e.EvaluateSet(now, SetResult{TrainerIntensity: 98, Strain: 82})
	if d := e.EvaluateSet(now, SetResult{TrainerIntensity: 97.5, Strain: 82}); !d.Settled {
		t.Fatalf("week 1 never settled: %+v", d)
	}

	// Weeks 2-4: two sessions of three off-band sets each, yet exactly one
	// parameter change lands per week.
	for week := 2; week <= 4; week++ {
		changes := 0
		for sess := 0; sess < 2; sess++ {
			e.BeginSession(week, sess == 0)
			for set := 0; set < 3; set++ {
				if d := e.EvaluateSet(now, SetResult{TrainerIntensity: 90, Strain: 80}); d.Adjusted {
					changes++
				}
			}
		}
		if changes != 1 {
			t.Fatalf("week %d made %d parameter changes, want exactly 1", week, changes)
		}
	}

	caps := Capabilities{Wearable: true, Headphones: true}
	e.BeginSession(5, true)

	// Improving history keeps the plateau test closed even in week 5.
	if _, err := e.PlanPlateauTest(now, caps, []float64{90, 93, 96, 97, 99}); !errors.Is(err, ErrNoPlateau) {
		t.Fatalf("improving history err = %v, want ErrNoPlateau", err)
	}

	// Stalled history opens it.
	if _, err := e.PlanPlateauTest(now, caps, []float64{96, 96.2, 96.1}); err != nil {
		t.Fatalf("stalled history plan failed: %v", err)
	}
	if e.State().Mode != models.ModePlateauTest {
		t.Errorf("mode = %v, want plateau_test", e.State().Mode)
	}
}
