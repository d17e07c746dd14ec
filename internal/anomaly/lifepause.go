package anomaly

import "time"

const (
	// GyroFlatThreshold is the gyro magnitude (°/s) below which the device
	// is considered motionless.
	GyroFlatThreshold = 2.0

	// lifePauseStrainFall is the minimum relative strain fall that, with a
	// flat gyro, marks the interval as an incidental pause rather than
	// genuine recovery.
	lifePauseStrainFall = 0.02

	lifePauseDebounce = 2 * time.Second
	lifePauseCooldown = 5 * time.Second
)

// LifePauseDetector marks incidental stationary periods, like answering the
// door or checking a message, that must not be read as recovery. While a
// pause is active the rest timer keeps running but auto-extension is
// suppressed and the calibration engine ignores the interval.
type LifePauseDetector struct {
	machine *Machine
}

// NewLifePauseDetector creates the detector armed.
func NewLifePauseDetector() *LifePauseDetector {
	m := NewMachine(lifePauseDebounce, lifePauseCooldown, true)
	m.Arm()
	return &LifePauseDetector{machine: m}
}

// Observe feeds one tick of gyro magnitude and trailing strain fall and
// returns whether the interval just became a suppressed life pause.
func (d *LifePauseDetector) Observe(t time.Time, gyroMag, strainDrop float64) bool {
	cond := gyroMag < GyroFlatThreshold && strainDrop > lifePauseStrainFall
	return d.machine.Observe(t, cond)
}

// Active reports whether a life pause is currently being suppressed.
func (d *LifePauseDetector) Active() bool { return d.machine.Pending() }
