// Package intake bridges the wearable's MQTT sensor topics into the signal
// normalizer. One subscriber per device; callbacks only stamp the latest
// value, the engine tick does the fusing.
package intake

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/signal"
)

// Sensor topics published by the wearable bridge.
const (
	TopicHeartRate = "setforge/sensor/hr"
	TopicSpO2      = "setforge/sensor/spo2"
	TopicMotion    = "setforge/sensor/motion"
	TopicBattery   = "setforge/sensor/battery"
)

// Wire payloads. Timestamps are the sensor's own sampling times, not
// broker arrival.
type heartRateMsg struct {
	BPM float64   `json:"bpm"`
	At  time.Time `json:"at"`
}

type spo2Msg struct {
	Pct float64   `json:"pct"`
	At  time.Time `json:"at"`
}

type motionMsg struct {
	Accel models.Vec3 `json:"accel"`
	Gyro  models.Vec3 `json:"gyro"`
	At    time.Time   `json:"at"`
}

type batteryMsg struct {
	Pct float64 `json:"pct"`
}

// Subscriber feeds one normalizer from the broker.
type Subscriber struct {
	client mqtt.Client
	norm   *signal.Normalizer
	log    *slog.Logger
}

// Connect dials the broker and subscribes all sensor topics.
func Connect(brokerURL, clientID string, norm *signal.Normalizer, log *slog.Logger) (*Subscriber, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to broker %s: %w", brokerURL, token.Error())
	}

	s := &Subscriber{client: client, norm: norm, log: log}
	subs := map[string]mqtt.MessageHandler{
		TopicHeartRate: s.onHeartRate,
		TopicSpO2:      s.onSpO2,
		TopicMotion:    s.onMotion,
		TopicBattery:   s.onBattery,
	}
	for topic, handler := range subs {
		if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			client.Disconnect(250)
			return nil, fmt.Errorf("subscribing %s: %w", topic, token.Error())
		}
	}
	log.Info("sensor intake connected", "broker", brokerURL)
	return s, nil
}

func (s *Subscriber) onHeartRate(_ mqtt.Client, msg mqtt.Message) {
	var m heartRateMsg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.log.Warn("bad heart-rate payload", "error", err)
		return
	}
	s.norm.UpdateHeartRate(m.At, m.BPM)
}

func (s *Subscriber) onSpO2(_ mqtt.Client, msg mqtt.Message) {
	var m spo2Msg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.log.Warn("bad spo2 payload", "error", err)
		return
	}
	s.norm.UpdateSpO2(m.At, m.Pct)
}

func (s *Subscriber) onMotion(_ mqtt.Client, msg mqtt.Message) {
	var m motionMsg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.log.Warn("bad motion payload", "error", err)
		return
	}
	s.norm.UpdateMotion(m.At, m.Accel, m.Gyro)
}

func (s *Subscriber) onBattery(_ mqtt.Client, msg mqtt.Message) {
	var m batteryMsg
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.log.Warn("bad battery payload", "error", err)
		return
	}
	s.norm.UpdateBattery(m.Pct)
}

// Connected reports whether the broker link is currently up.
func (s *Subscriber) Connected() bool {
	return s.client.IsConnectionOpen()
}

// Close unsubscribes and disconnects.
func (s *Subscriber) Close() {
	s.client.Unsubscribe(TopicHeartRate, TopicSpO2, TopicMotion, TopicBattery)
	s.client.Disconnect(250)
}
