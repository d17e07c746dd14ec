package tempo

import (
	"time"

	"github.com/meltforce/setforge/internal/models"
)

// Integrator derives a signed axial velocity from raw accelerometer ticks.
// Gravity is removed with a low-pass estimate per axis; the residual linear
// acceleration is integrated with a leak so sensor bias cannot wind the
// velocity up without bound between pauses.
type Integrator struct {
	gravity models.Vec3
	warmed  bool

	vel    models.Vec3
	lastAt time.Time
}

const (
	// gravityAlpha is the low-pass coefficient for the gravity estimate.
	gravityAlpha = 0.02
	// velocityLeak decays integrated velocity per second.
	velocityLeak = 0.8
)

// NewIntegrator creates an Integrator.
func NewIntegrator() *Integrator { return &Integrator{} }

// Observe feeds one accelerometer tick and returns the signed velocity along
// the dominant movement axis.
func (in *Integrator) Observe(t time.Time, accel models.Vec3) float64 {
	if !in.warmed {
		in.gravity = accel
		in.warmed = true
		in.lastAt = t
		return 0
	}

	in.gravity.X += gravityAlpha * (accel.X - in.gravity.X)
	in.gravity.Y += gravityAlpha * (accel.Y - in.gravity.Y)
	in.gravity.Z += gravityAlpha * (accel.Z - in.gravity.Z)

	lin := models.Vec3{
		X: accel.X - in.gravity.X,
		Y: accel.Y - in.gravity.Y,
		Z: accel.Z - in.gravity.Z,
	}

	dt := t.Sub(in.lastAt).Seconds()
	in.lastAt = t
	if dt <= 0 || dt > 1 {
		// Clock jump or stream gap: hold rather than integrate garbage.
		return in.dominant()
	}

	decay := 1 - velocityLeak*dt
	if decay < 0 {
		decay = 0
	}
	in.vel.X = in.vel.X*decay + lin.X*dt
	in.vel.Y = in.vel.Y*decay + lin.Y*dt
	in.vel.Z = in.vel.Z*decay + lin.Z*dt

	return in.dominant()
}

// Reset clears integrated state, called between sets.
func (in *Integrator) Reset() {
	in.vel = models.Vec3{}
	in.warmed = false
}

func (in *Integrator) dominant() float64 {
	v := in.vel.X
	if abs(in.vel.Y) > abs(v) {
		v = in.vel.Y
	}
	if abs(in.vel.Z) > abs(v) {
		v = in.vel.Z
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
