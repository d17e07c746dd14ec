// Package cue publishes semantic coaching events over MQTT. The engine only
// decides which cue happens; the headphone bridge renders vibration and
// audio. Publishes are fire-and-forget at QoS 0; a lost cue is stale within
// a tick anyway.
package cue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/meltforce/setforge/internal/models"
)

const (
	TopicPulse  = "setforge/cue/pulse"
	TopicSet    = "setforge/cue/set"
	TopicSafety = "setforge/cue/safety"
)

// Pulse codes for tempo guidance during a plateau test.
type Pulse int

const (
	PulseDown Pulse = 1 // begin eccentric
	PulseUp   Pulse = 2 // begin concentric
	PulseHold Pulse = 3 // hold position
)

// ForPhase picks the pulse for a just-finished phase: a detected mid-rep
// pause gets the hold cue, otherwise the pulse for the phase that starts
// next.
func ForPhase(p models.RepPhase) Pulse {
	switch {
	case p.PauseDetected:
		return PulseHold
	case p.Kind == models.PhaseEccentric:
		return PulseUp
	default:
		return PulseDown
	}
}

type pulseMsg struct {
	Code Pulse     `json:"code"`
	At   time.Time `json:"at"`
}

type setMsg struct {
	Event string    `json:"event"` // "begun" / "ended"
	At    time.Time `json:"at"`
}

type safetyMsg struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Publisher emits cues to the broker.
type Publisher struct {
	client mqtt.Client
	log    *slog.Logger
}

// Connect dials the broker.
func Connect(brokerURL, clientID string, log *slog.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to broker %s: %w", brokerURL, token.Error())
	}
	log.Info("cue publisher connected", "broker", brokerURL)
	return &Publisher{client: client, log: log}, nil
}

// Pulse emits a tempo pulse.
func (p *Publisher) Pulse(at time.Time, code Pulse) {
	p.publish(TopicPulse, pulseMsg{Code: code, At: at})
}

// SetBegun announces the start of a set.
func (p *Publisher) SetBegun(at time.Time) {
	p.publish(TopicSet, setMsg{Event: "begun", At: at})
}

// SetEnded announces the end of a set.
func (p *Publisher) SetEnded(at time.Time) {
	p.publish(TopicSet, setMsg{Event: "ended", At: at})
}

// SafetyStop announces an immediate stop (plateau-test abort).
func (p *Publisher) SafetyStop(at time.Time, reason string) {
	p.publish(TopicSafety, safetyMsg{Reason: reason, At: at})
}

func (p *Publisher) publish(topic string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.log.Error("marshaling cue", "topic", topic, "error", err)
		return
	}
	p.client.Publish(topic, 0, false, b)
}

// Connected reports whether the broker link is currently up.
func (p *Publisher) Connected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
