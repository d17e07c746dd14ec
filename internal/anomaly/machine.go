// Package anomaly implements the debounced anomaly detector shared by the
// forgotten-set watchdog and life-pause suppression. Both are the same
// Idle → Watching → Pending → Resolved state machine with different
// trigger conditions and resolution rules.
package anomaly

import "time"

// State is the machine's position in the detection lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
	StatePending  State = "pending"
	StateResolved State = "resolved"
)

// Machine is a debounced condition detector. The trigger condition must hold
// continuously for the debounce interval before the machine fires into
// Pending; after resolution a cooldown suppresses immediate re-triggering so
// one noisy episode produces one event.
type Machine struct {
	debounce    time.Duration
	cooldown    time.Duration
	autoResolve bool

	state         State
	condSince     time.Time
	firedAt       time.Time
	triggerStart  time.Time
	cooldownUntil time.Time
}

// NewMachine creates an idle Machine. autoResolve machines (life pause) drop
// back to Watching on their own when the condition clears; manual machines
// (forgotten set) stay Pending until Resolve is called.
func NewMachine(debounce, cooldown time.Duration, autoResolve bool) *Machine {
	return &Machine{
		debounce:    debounce,
		cooldown:    cooldown,
		autoResolve: autoResolve,
		state:       StateIdle,
	}
}

// Arm moves an idle or resolved machine to Watching.
func (m *Machine) Arm() {
	if m.state == StateIdle || m.state == StateResolved {
		m.state = StateWatching
		m.condSince = time.Time{}
	}
}

// Observe feeds one tick of the trigger condition. Returns true exactly once
// per episode, on the Watching → Pending transition.
func (m *Machine) Observe(t time.Time, cond bool) bool {
	switch m.state {
	case StateWatching:
		if !cond {
			m.condSince = time.Time{}
			return false
		}
		if t.Before(m.cooldownUntil) {
			return false
		}
		if m.condSince.IsZero() {
			m.condSince = t
		}
		if t.Sub(m.condSince) >= m.debounce {
			m.state = StatePending
			m.firedAt = t
			m.triggerStart = m.condSince
			return true
		}
		return false

	case StatePending:
		if m.autoResolve && !cond {
			m.resolveAt(t)
		}
		return false
	}
	return false
}

// Resolve closes a pending episode and re-arms with cooldown.
func (m *Machine) Resolve(t time.Time) {
	if m.state == StatePending {
		m.resolveAt(t)
	}
}

func (m *Machine) resolveAt(t time.Time) {
	m.state = StateWatching
	m.condSince = time.Time{}
	m.cooldownUntil = t.Add(m.cooldown)
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Pending reports whether an episode is active.
func (m *Machine) Pending() bool { return m.state == StatePending }

// FiredAt returns when the current/last episode fired.
func (m *Machine) FiredAt() time.Time { return m.firedAt }

// TriggerStart returns when the trigger condition began holding for the
// current/last episode, the pre-anomaly boundary.
func (m *Machine) TriggerStart() time.Time { return m.triggerStart }
