package anomaly

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
)

const (
	// ErraticismThreshold is the accel-magnitude variance above which motion
	// counts as erratic (phone fumbling, racking the bar mid-set).
	ErraticismThreshold = 6.0

	// StrainDropThreshold is the relative strain fall that, combined with
	// erratic motion, marks a likely-ended set: >10% within the trailing
	// 3-second window.
	StrainDropThreshold = 0.10

	// StrainDropWindow is the trailing window the drop is measured over.
	StrainDropWindow = 3 * time.Second

	// DistractionRestBonus is added to the next rest period when the athlete
	// answers "no": they were interrupted, not finished.
	DistractionRestBonus = 15 * time.Second

	forgottenDebounce = 500 * time.Millisecond
	forgottenCooldown = 10 * time.Second
)

// Resolution is the outcome of a forgotten-set prompt.
type Resolution struct {
	Response    models.PromptResponse
	RestBonus   time.Duration // nonzero on "no"/timeout
	EndSetAt    time.Time     // pre-glitch boundary, set on "yes"
	Distraction bool
}

// ForgottenSetDetector watches for likely-ended-but-unconfirmed sets.
// Exactly one prompt is surfaced per episode; while a prompt is pending no
// further triggers fire.
type ForgottenSetDetector struct {
	machine      *Machine
	promptWindow time.Duration
	sessionID    uuid.UUID

	pending *models.ForgottenSetEvent
	log     *slog.Logger
}

// NewForgottenSetDetector creates the watchdog for one session. promptWindow
// is how long the confirmation prompt stays open before timing out.
func NewForgottenSetDetector(sessionID uuid.UUID, promptWindow time.Duration, log *slog.Logger) *ForgottenSetDetector {
	m := NewMachine(forgottenDebounce, forgottenCooldown, false)
	m.Arm()
	return &ForgottenSetDetector{
		machine:      m,
		promptWindow: promptWindow,
		sessionID:    sessionID,
		log:          log,
	}
}

// Observe feeds one tick. erraticism is the trailing accel variance,
// strainDrop the relative strain fall over the trailing 3s window. Returns
// the prompt event exactly once when an episode fires; nil otherwise.
func (d *ForgottenSetDetector) Observe(t time.Time, erraticism, strainDrop float64) *models.ForgottenSetEvent {
	cond := erraticism > ErraticismThreshold && strainDrop > StrainDropThreshold
	if !d.machine.Observe(t, cond) {
		return nil
	}

	ev := &models.ForgottenSetEvent{
		ID:          uuid.New(),
		SessionID:   d.sessionID,
		TriggeredAt: t,
		StrainDelta: strainDrop,
		Erraticism:  erraticism,
	}
	d.pending = ev
	if d.log != nil {
		d.log.Info("forgotten-set prompt", "strain_drop", strainDrop, "erraticism", erraticism)
	}
	return ev
}

// Prompting reports whether a prompt is awaiting an answer.
func (d *ForgottenSetDetector) Prompting() bool { return d.pending != nil }

// Resolve answers the pending prompt. "Yes" ends the set at the pre-glitch
// sample boundary so post-glitch motion is discarded; "no" (and, per the
// default, a timeout) flags a distraction and grants the rest bonus, and the
// watchdog returns to Watching.
func (d *ForgottenSetDetector) Resolve(t time.Time, resp models.PromptResponse) (Resolution, bool) {
	if d.pending == nil {
		return Resolution{}, false
	}
	ev := d.pending
	d.pending = nil
	ev.Response = resp
	d.machine.Resolve(t)

	switch resp {
	case models.PromptYes:
		ev.Action = "set_ended_at_glitch"
		return Resolution{Response: resp, EndSetAt: d.machine.TriggerStart()}, true
	default:
		// "no" and timeout resolve identically: the athlete is mid-set.
		ev.Action = "distraction_rest_bonus"
		return Resolution{Response: resp, RestBonus: DistractionRestBonus, Distraction: true}, true
	}
}

// CheckTimeout resolves the pending prompt as "no" once the confirmation
// window elapses with no answer.
func (d *ForgottenSetDetector) CheckTimeout(t time.Time) (Resolution, bool) {
	if d.pending == nil || t.Sub(d.pending.TriggeredAt) < d.promptWindow {
		return Resolution{}, false
	}
	return d.Resolve(t, models.PromptTimeout)
}

// Pending returns the open prompt event, if any.
func (d *ForgottenSetDetector) Pending() *models.ForgottenSetEvent { return d.pending }

// Erraticism computes the accel-magnitude variance over a sample window.
func Erraticism(samples []models.SensorSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	mags := make([]float64, len(samples))
	var sum float64
	for i, s := range samples {
		m := math.Sqrt(s.Accel.X*s.Accel.X + s.Accel.Y*s.Accel.Y + s.Accel.Z*s.Accel.Z)
		mags[i] = m
		sum += m
	}
	mean := sum / float64(len(mags))
	var sq float64
	for _, m := range mags {
		d := m - mean
		sq += d * d
	}
	return sq / float64(len(mags))
}
