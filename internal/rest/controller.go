// Package rest implements the dynamic rest-period countdown between sets.
package rest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
)

const (
	// MinRest and MaxRest bound the planned duration; only auto-extension
	// may push the effective deadline past MaxRest.
	MinRest = 30 * time.Second
	MaxRest = 90 * time.Second

	// extendThreshold is the strain above which the countdown auto-extends.
	extendThreshold = 85.0

	// extendHorizon is how much remaining time an auto-extension guarantees:
	// while strain stays high the deadline is pushed so at least this much
	// of the countdown is left. Extension is monotonic: the deadline never
	// moves earlier.
	extendHorizon = 10 * time.Second
)

// State is the countdown's phase.
type State string

const (
	StateCounting      State = "counting"
	StateAutoExtending State = "auto_extending"
	StateSuppressed    State = "suppressed_life_pause"
	StateComplete      State = "complete"
)

// PlanDuration derives the planned rest from the end-of-set strain context:
// low strain rests 30s, maximal strain rests the full 90s, linearly between.
func PlanDuration(strain float64) time.Duration {
	if strain < 0 {
		strain = 0
	}
	if strain > 100 {
		strain = 100
	}
	d := MinRest + time.Duration(strain/100*float64(MaxRest-MinRest))
	return clampPlan(d)
}

func clampPlan(d time.Duration) time.Duration {
	if d < MinRest {
		return MinRest
	}
	if d > MaxRest {
		return MaxRest
	}
	return d
}

// Controller owns one rest countdown. It is the single writer of rest state:
// other components only publish the inputs (strain, life-pause) it reads.
type Controller struct {
	mu sync.Mutex

	setID     uuid.UUID
	planned   time.Duration
	startedAt time.Time
	deadline  time.Time

	state        State
	autoExtended bool
	suppressed   bool

	log *slog.Logger
}

// NewController starts the countdown for the set that just completed.
// distractionBonus is the carry-over from a forgotten-set "no" answer; it is
// added on top of the clamped planned duration.
func NewController(setID uuid.UUID, start time.Time, planned, distractionBonus time.Duration, log *slog.Logger) *Controller {
	planned = clampPlan(planned) + distractionBonus
	return &Controller{
		setID:     setID,
		planned:   planned,
		startedAt: start,
		deadline:  start.Add(planned),
		state:     StateCounting,
		log:       log,
	}
}

// Tick advances the countdown with the latest strain value and life-pause
// state. A suppressed life pause keeps the timer running but must not
// trigger auto-extension. Returns true when the countdown completes.
func (c *Controller) Tick(t time.Time, strain float64, lifePause bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateComplete {
		return true
	}

	if lifePause {
		c.suppressed = true
		c.state = StateSuppressed
	} else if strain > extendThreshold {
		target := t.Add(extendHorizon)
		if target.After(c.deadline) {
			if !c.autoExtended && c.log != nil {
				c.log.Info("rest auto-extend", "strain", strain)
			}
			c.deadline = target
			c.autoExtended = true
		}
		c.state = StateAutoExtending
	} else {
		c.state = StateCounting
	}

	if !t.Before(c.deadline) {
		c.state = StateComplete
		return true
	}
	return false
}

// Snapshot is the published countdown view.
type Snapshot struct {
	State               State         `json:"state"`
	Planned             time.Duration `json:"planned"`
	Remaining           time.Duration `json:"remaining"`
	AutoExtended        bool          `json:"auto_extended"`
	SuppressedLifePause bool          `json:"suppressed_life_pause"`
}

// Snapshot returns the current countdown state for the coaching UI.
func (c *Controller) Snapshot(t time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.deadline.Sub(t)
	if remaining < 0 || c.state == StateComplete {
		remaining = 0
	}
	return Snapshot{
		State:               c.state,
		Planned:             c.planned,
		Remaining:           remaining,
		AutoExtended:        c.autoExtended,
		SuppressedLifePause: c.suppressed,
	}
}

// Finish closes the countdown and returns the completed RestPeriod record.
func (c *Controller) Finish(t time.Time) models.RestPeriod {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateComplete
	actual := t.Sub(c.startedAt)
	if actual < 0 {
		actual = 0
	}
	return models.RestPeriod{
		SetID:               c.setID,
		PlannedDuration:     c.planned,
		ActualDuration:      actual,
		AutoExtended:        c.autoExtended,
		SuppressedLifePause: c.suppressed,
		StartedAt:           c.startedAt,
		EndedAt:             t,
	}
}
