// Package tempo segments repetition motion into concentric/eccentric phases
// and scores how closely each phase tracks the exercise's target duration.
package tempo

import (
	"time"

	"github.com/meltforce/setforge/internal/models"
)

const (
	// velocityEps is the near-zero band: below it the bar is considered paused.
	velocityEps = 0.05
	// velocityStart is the movement threshold that opens a phase.
	velocityStart = 0.12
	// pauseHold is how long velocity must stay near zero to count as a pause
	// rather than a momentary zero crossing.
	pauseHold = 200 * time.Millisecond
)

type classifierState int

const (
	stateIdle classifierState = iota
	stateInPhase
)

// Classifier is the per-set phase state machine. The first movement after a
// near-zero-velocity pause is concentric and the following reversal is
// eccentric; Inverted flips that order for exercises that start with the
// lowering half (e.g. Romanian deadlifts from the top).
type Classifier struct {
	Inverted bool

	state      classifierState
	phaseKind  models.PhaseKind
	phaseStart time.Time
	phaseSign  int

	nearZeroSince time.Time

	phases []models.RepPhase
}

// NewClassifier creates a Classifier. The set starts paused: an athlete
// settles before the first rep, so the opening movement is classified.
func NewClassifier(inverted bool) *Classifier {
	return &Classifier{Inverted: inverted}
}

func (c *Classifier) firstKind() models.PhaseKind {
	if c.Inverted {
		return models.PhaseEccentric
	}
	return models.PhaseConcentric
}

func opposite(k models.PhaseKind) models.PhaseKind {
	if k == models.PhaseConcentric {
		return models.PhaseEccentric
	}
	return models.PhaseConcentric
}

// Observe feeds one tick of signed axial velocity. Returns the completed
// phase when this tick closes one, or nil.
func (c *Classifier) Observe(t time.Time, velocity float64) *models.RepPhase {
	abs := velocity
	if abs < 0 {
		abs = -abs
	}

	// Track the near-zero dwell used for pause detection.
	if abs < velocityEps {
		if c.nearZeroSince.IsZero() {
			c.nearZeroSince = t
		}
	} else {
		c.nearZeroSince = time.Time{}
	}

	switch c.state {
	case stateIdle:
		// Idle is only entered through a pause, so the opening movement is
		// always classified as the configured first kind.
		if abs >= velocityStart {
			c.openPhase(t, c.firstKind(), sign(velocity))
		}
		return nil

	case stateInPhase:
		// Sustained near-zero velocity ends the phase with a pause.
		if !c.nearZeroSince.IsZero() && t.Sub(c.nearZeroSince) >= pauseHold {
			p := c.closePhase(c.nearZeroSince, true)
			c.state = stateIdle
			return p
		}
		// A reversal at movement speed ends the phase and opens the opposite one.
		if abs >= velocityStart && sign(velocity) != c.phaseSign {
			p := c.closePhase(t, false)
			c.openPhase(t, opposite(p.Kind), sign(velocity))
			return p
		}
		return nil
	}
	return nil
}

func (c *Classifier) openPhase(t time.Time, kind models.PhaseKind, s int) {
	c.state = stateInPhase
	c.phaseKind = kind
	c.phaseStart = t
	c.phaseSign = s
}

func (c *Classifier) closePhase(end time.Time, pause bool) *models.RepPhase {
	p := models.RepPhase{
		Kind:          c.phaseKind,
		Start:         c.phaseStart,
		End:           end,
		Duration:      end.Sub(c.phaseStart),
		PauseDetected: pause,
	}
	c.phases = append(c.phases, p)
	return &p
}

// Finish closes any open phase at the given time and returns all phases.
func (c *Classifier) Finish(t time.Time) []models.RepPhase {
	if c.state == stateInPhase {
		c.closePhase(t, false)
		c.state = stateIdle
	}
	return c.phases
}

// Phases returns the phases classified so far.
func (c *Classifier) Phases() []models.RepPhase { return c.phases }

// RepCount counts completed repetitions: one rep per concentric/eccentric pair.
func (c *Classifier) RepCount() int { return len(c.phases) / 2 }

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
