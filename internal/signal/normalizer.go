// Package signal unifies vendor sensor callbacks into one normalized
// per-tick sample stream with availability flags.
package signal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/setforge/internal/models"
)

const (
	// DefaultWindow is the ring-buffer capacity: 10s of samples at 100ms ticks.
	DefaultWindow = 100

	// freezeBatteryPct is the wearable battery level below which the last
	// good sample is held instead of recomputing from a dying sensor.
	freezeBatteryPct = 10

	// staleAfter marks a source stale when it stops reporting for this long.
	staleAfter = 2 * time.Second
)

// Normalizer fuses per-source callbacks into SensorSamples. Vendor adapters
// call the Update methods at whatever cadence the hardware delivers; Tick
// assembles the fused sample on the engine cadence.
type Normalizer struct {
	mu sync.Mutex

	hr         float64
	hrAt       time.Time
	spo2       float64
	spo2At     time.Time
	accel      models.Vec3
	gyro       models.Vec3
	motionAt   time.Time
	battery    float64
	hasBattery bool

	lastGood models.SensorSample
	hasGood  bool

	ring []models.SensorSample
	next int
	size int

	log *slog.Logger
}

// NewNormalizer creates a Normalizer with a ring buffer of capacity samples.
func NewNormalizer(capacity int, log *slog.Logger) *Normalizer {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Normalizer{
		ring: make([]models.SensorSample, capacity),
		log:  log,
	}
}

// UpdateHeartRate records a heart-rate callback from the wearable.
func (n *Normalizer) UpdateHeartRate(t time.Time, bpm float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hr = bpm
	n.hrAt = t
}

// UpdateSpO2 records a blood-oxygen callback from the wearable.
func (n *Normalizer) UpdateSpO2(t time.Time, pct float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.spo2 = pct
	n.spo2At = t
}

// UpdateMotion records an accelerometer/gyroscope callback.
func (n *Normalizer) UpdateMotion(t time.Time, accel, gyro models.Vec3) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accel = accel
	n.gyro = gyro
	n.motionAt = t
}

// UpdateBattery records the wearable battery percentage.
func (n *Normalizer) UpdateBattery(pct float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.battery = pct
	n.hasBattery = true
}

// Tick assembles the fused sample for the current engine tick, appends it to
// the ring buffer, and returns it. Below the battery floor the last good
// sample is returned with Frozen set; downstream holds values rather than
// recomputing.
func (n *Normalizer) Tick(t time.Time) models.SensorSample {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.hasBattery && n.battery < freezeBatteryPct && n.hasGood {
		s := n.lastGood
		s.Time = t
		s.Frozen = true
		n.push(s)
		return s
	}

	s := models.SensorSample{
		Time:        t,
		HeartRate:   n.hr,
		SpO2:        n.spo2,
		Accel:       n.accel,
		Gyro:        n.gyro,
		HRAvail:     !n.hrAt.IsZero() && t.Sub(n.hrAt) <= staleAfter,
		SpO2Avail:   !n.spo2At.IsZero() && t.Sub(n.spo2At) <= staleAfter,
		MotionAvail: !n.motionAt.IsZero() && t.Sub(n.motionAt) <= staleAfter,
	}
	// A source that reported once but went quiet is stale, not absent.
	s.Stale = (!n.hrAt.IsZero() && !s.HRAvail) ||
		(!n.motionAt.IsZero() && !s.MotionAvail)

	n.lastGood = s
	n.hasGood = true
	n.push(s)
	return s
}

// Degraded reports whether motion has never been seen: without motion the
// whole tempo/live-intensity pipeline is disabled for the session and the
// caller must surface degraded mode rather than default silently.
func (n *Normalizer) Degraded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.motionAt.IsZero()
}

// Frozen reports whether the normalizer is holding the last good sample.
func (n *Normalizer) Frozen() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hasBattery && n.battery < freezeBatteryPct
}

// Window returns up to count most recent samples, oldest first.
func (n *Normalizer) Window(count int) []models.SensorSample {
	n.mu.Lock()
	defer n.mu.Unlock()

	if count > n.size {
		count = n.size
	}
	out := make([]models.SensorSample, 0, count)
	start := n.next - count
	if start < 0 {
		start += len(n.ring)
	}
	for i := 0; i < count; i++ {
		out = append(out, n.ring[(start+i)%len(n.ring)])
	}
	return out
}

// WindowSince returns the buffered samples at or after cutoff, oldest first.
func (n *Normalizer) WindowSince(cutoff time.Time) []models.SensorSample {
	all := n.Window(len(n.ring))
	for i, s := range all {
		if !s.Time.Before(cutoff) {
			return all[i:]
		}
	}
	return nil
}

func (n *Normalizer) push(s models.SensorSample) {
	n.ring[n.next] = s
	n.next = (n.next + 1) % len(n.ring)
	if n.size < len(n.ring) {
		n.size++
	}
}
