package anomaly

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// fire drives a detector through a qualifying erratic window until the
// prompt appears.
func fire(d *ForgottenSetDetector) *models.ForgottenSetEvent {
	for i := 0; i < 10; i++ {
		t := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		if ev := d.Observe(t, 8.0, 0.2); ev != nil {
			return ev
		}
	}
	return nil
}

// TestForgotten_QualifyingWindowFiresOnce verifies that a sustained
// erratic-motion + strain-fall window produces exactly one prompt and no
// duplicates while it is pending.
func TestForgotten_QualifyingWindowFiresOnce(t *testing.T) {
	d := NewForgottenSetDetector(uuid.New(), 15*time.Second, nil)

	ev := fire(d)
	if ev == nil {
		t.Fatal("expected a prompt from a qualifying window")
	}
	if ev.StrainDelta != 0.2 || ev.Erraticism != 8.0 {
		t.Errorf("event carries %v/%v, want trigger values 0.2/8.0", ev.StrainDelta, ev.Erraticism)
	}

	// The episode keeps qualifying: no second prompt while pending.
	for i := 10; i < 30; i++ {
		if dup := d.Observe(t0.Add(time.Duration(i)*100*time.Millisecond), 9.0, 0.3); dup != nil {
			t.Fatal("duplicate prompt while one is pending")
		}
	}
}

// TestForgotten_BothConditionsRequired verifies the trigger needs erratic
// motion AND the strain fall; either alone never fires.
func TestForgotten_BothConditionsRequired(t *testing.T) {
	erraticOnly := NewForgottenSetDetector(uuid.New(), 15*time.Second, nil)
	strainOnly := NewForgottenSetDetector(uuid.New(), 15*time.Second, nil)

	for i := 0; i < 30; i++ {
		tm := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		if ev := erraticOnly.Observe(tm, 9.0, 0.05); ev != nil {
			t.Fatal("erraticism alone fired")
		}
		if ev := strainOnly.Observe(tm, 1.0, 0.3); ev != nil {
			t.Fatal("strain fall alone fired")
		}
	}
}

// TestForgotten_NoAddsRestBonus verifies "no" resolves with the 15s rest
// bonus and a distraction flag, and the watchdog re-arms.
func TestForgotten_NoAddsRestBonus(t *testing.T) {
	d := NewForgottenSetDetector(uuid.New(), 15*time.Second, nil)
	if fire(d) == nil {
		t.Fatal("no prompt")
	}

	res, ok := d.Resolve(t0.Add(2*time.Second), models.PromptNo)
	if !ok {
		t.Fatal("resolve failed")
	}
	if res.RestBonus != 15*time.Second {
		t.Errorf("rest bonus = %v, want exactly 15s", res.RestBonus)
	}
	if !res.Distraction {
		t.Error("expected distraction flag")
	}
	if d.Prompting() {
		t.Error("prompt should be closed")
	}
	if d.machine.State() != StateWatching {
		t.Errorf("state = %s, want watching", d.machine.State())
	}
}

// TestForgotten_YesEndsAtPreGlitchBoundary verifies "yes" returns the time
// the glitch began so post-glitch motion is discarded.
func TestForgotten_YesEndsAtPreGlitchBoundary(t *testing.T) {
	d := NewForgottenSetDetector(uuid.New(), 15*time.Second, nil)
	ev := fire(d)
	if ev == nil {
		t.Fatal("no prompt")
	}

	res, ok := d.Resolve(ev.TriggeredAt.Add(3*time.Second), models.PromptYes)
	if !ok {
		t.Fatal("resolve failed")
	}
	if res.EndSetAt.IsZero() {
		t.Fatal("expected a pre-glitch boundary")
	}
	if !res.EndSetAt.Before(ev.TriggeredAt) {
		t.Errorf("boundary %v should precede trigger %v", res.EndSetAt, ev.TriggeredAt)
	}
	if res.RestBonus != 0 {
		t.Error("yes must not grant a rest bonus")
	}
}

// TestForgotten_TimeoutResolvesAsNo verifies an unanswered prompt resolves
// with the "no" semantics once the confirmation window elapses.
func TestForgotten_TimeoutResolvesAsNo(t *testing.T) {
	d := NewForgottenSetDetector(uuid.New(), 15*time.Second, nil)
	ev := fire(d)
	if ev == nil {
		t.Fatal("no prompt")
	}

	if _, ok := d.CheckTimeout(ev.TriggeredAt.Add(14 * time.Second)); ok {
		t.Fatal("timed out before the window elapsed")
	}
	res, ok := d.CheckTimeout(ev.TriggeredAt.Add(15 * time.Second))
	if !ok {
		t.Fatal("expected timeout resolution")
	}
	if res.Response != models.PromptTimeout {
		t.Errorf("response = %q, want timeout", res.Response)
	}
	if res.RestBonus != 15*time.Second || !res.Distraction {
		t.Error("timeout must carry the same effects as no")
	}
}

// TestErraticism verifies the variance measure separates steady from
// erratic acceleration.
func TestErraticism(t *testing.T) {
	steady := make([]models.SensorSample, 10)
	erratic := make([]models.SensorSample, 10)
	for i := range steady {
		steady[i].Accel = models.Vec3{Y: 9.8}
		mag := 9.8
		if i%2 == 0 {
			mag = 16.0
		}
		erratic[i].Accel = models.Vec3{Y: mag}
	}

	if got := Erraticism(steady); got != 0 {
		t.Errorf("steady erraticism = %v, want 0", got)
	}
	if got := Erraticism(erratic); got <= ErraticismThreshold {
		t.Errorf("erratic erraticism = %v, want above threshold %v", got, ErraticismThreshold)
	}
	if got := Erraticism(nil); got != 0 {
		t.Errorf("empty erraticism = %v, want 0", got)
	}
}
