// Package session orchestrates one active workout: it drives the per-tick
// pipeline from normalized samples through strain, tempo, motion quality and
// the anomaly watchdogs, finalizes each set into a locked record, and runs
// the rest countdown in between.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/anomaly"
	"github.com/meltforce/setforge/internal/calibration"
	"github.com/meltforce/setforge/internal/events"
	"github.com/meltforce/setforge/internal/intensity"
	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/motion"
	"github.com/meltforce/setforge/internal/rest"
	"github.com/meltforce/setforge/internal/signal"
	"github.com/meltforce/setforge/internal/store"
	"github.com/meltforce/setforge/internal/strain"
	"github.com/meltforce/setforge/internal/tempo"
)

// State is the session's coarse phase.
type State string

const (
	StateIdle    State = "idle"
	StateSet     State = "set"
	StateResting State = "resting"
)

var (
	// ErrNotInSet is returned when a set operation arrives outside a set.
	ErrNotInSet = errors.New("session: no set in progress")
	// ErrSetInProgress is returned when a set is started twice.
	ErrSetInProgress = errors.New("session: set already in progress")
	// ErrSafetyStopped is returned once a safety guardrail has fired; the
	// workout cannot continue in this session.
	ErrSafetyStopped = errors.New("session: stopped by safety guardrail")
)

// Config describes one workout session.
type Config struct {
	UserID     int
	ExerciseID string
	Mode       models.SessionMode

	// Inverted marks exercises that open eccentric (e.g. a pull movement
	// loaded on the way down).
	Inverted bool
	// TargetTempo is the calibrated per-phase duration, applied to both
	// halves of the rep.
	TargetTempo time.Duration
	// TargetEccentric and TargetConcentric override TargetTempo with an
	// asymmetric split (the plateau test's 70/30 prescription). When both
	// are zero the symmetric target applies.
	TargetEccentric  time.Duration
	TargetConcentric time.Duration

	Reps     int
	WeightKg float64

	// Plateau carries the guarded experiment plan when Mode is
	// ModeSessionPlateau. The session enforces its abort conditions per tick.
	Plateau *models.PlateauTestSession

	FeedbackWindow time.Duration
	PromptWindow   time.Duration
}

// Tick is the per-tick view published on the session bus. It stays inside
// the process; exportable payloads go through the privacy gate elsewhere.
type Tick struct {
	Time    time.Time
	Sample  models.SensorSample
	Strain  models.StrainReading
	State   State
	Rest    *rest.Snapshot
	Prompt  *models.ForgottenSetEvent
	RepDone *models.RepPhase
	// Live is the running intensity estimate for the open set, recomputed
	// every tick so downstream views stay within a second of the sensors.
	Live *intensity.Result
	// Safety carries the abort reason when a safety guardrail fired on
	// this tick.
	Safety string
}

// Session is one active workout. One instance per workout, never a
// singleton; concurrent ticks and API calls are serialized by the mutex.
type Session struct {
	mu  sync.Mutex
	id  uuid.UUID
	cfg Config
	log *slog.Logger

	norm       *signal.Normalizer
	estimator  *strain.Estimator
	integ      *tempo.Integrator
	classifier *tempo.Classifier
	motion     *motion.Scorer
	forgotten  *anomaly.ForgottenSetDetector
	lifePause  *anomaly.LifePauseDetector

	engine  *calibration.Engine // nil in free mode
	db      *store.Store        // nil in tests that skip persistence
	plateau *models.PlateauTestSession
	bus     *events.Bus[Tick]

	state      State
	setIndex   int
	setStarted time.Time
	finalizer  *intensity.Finalizer
	restCtl    *rest.Controller

	// romAccum integrates |velocity| across the open phase as a range-of-
	// motion proxy for the consistency scorer.
	romAccum     float64
	lastTick     time.Time
	pendingBonus time.Duration
	truncateAt   time.Time

	// safetyStop holds the guardrail reason once one fired; any further
	// sets in this session are refused.
	safetyStop string
}

// New creates a session around an existing normalizer and baseline.
func New(cfg Config, norm *signal.Normalizer, baseline strain.Baseline, engine *calibration.Engine, db *store.Store, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if cfg.FeedbackWindow <= 0 {
		cfg.FeedbackWindow = 20 * time.Second
	}
	if cfg.PromptWindow <= 0 {
		cfg.PromptWindow = 15 * time.Second
	}
	id := uuid.New()
	return &Session{
		id:        id,
		cfg:       cfg,
		log:       log.With("session", id.String()),
		norm:      norm,
		estimator: strain.NewEstimator(baseline),
		lifePause: anomaly.NewLifePauseDetector(),
		forgotten: anomaly.NewForgottenSetDetector(id, cfg.PromptWindow, log),
		engine:    engine,
		db:        db,
		plateau:   cfg.Plateau,
		bus:       events.NewBus[Tick](true),
		state:     StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Subscribe attaches a tick channel; the returned func detaches it.
func (s *Session) Subscribe(ch chan<- Tick) func() {
	return s.bus.Subscribe(ch)
}

// BeginSet opens the next set.
func (s *Session) BeginSet(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSet {
		return ErrSetInProgress
	}
	if s.safetyStop != "" || (s.plateau != nil && s.plateau.Aborted()) {
		return ErrSafetyStopped
	}
	s.setIndex++
	s.setStarted = t
	s.state = StateSet
	s.integ = tempo.NewIntegrator()
	s.classifier = tempo.NewClassifier(s.cfg.Inverted)
	s.motion = motion.NewScorer()
	s.finalizer = intensity.NewFinalizer()
	s.estimator.ResetPeak()
	s.romAccum = 0
	s.lastTick = time.Time{}
	s.truncateAt = time.Time{}
	s.restCtl = nil
	s.log.Info("set begun", "set", s.setIndex)
	return nil
}

// Tick advances the session by one sampling interval.
func (s *Session) Tick(t time.Time) Tick {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := s.norm.Tick(t)
	reading := s.estimator.Estimate(sample)

	tick := Tick{Time: t, Sample: sample, Strain: reading, State: s.state}

	switch s.state {
	case StateSet:
		s.tickSet(t, sample, reading, &tick)
	case StateResting:
		s.tickRest(t, sample, reading, &tick)
	}

	s.lastTick = t
	s.bus.Publish(tick)
	return tick
}

func (s *Session) tickSet(t time.Time, sample models.SensorSample, reading models.StrainReading, tick *Tick) {
	drop := s.estimator.DropWithin(anomaly.StrainDropWindow)
	s.lifePause.Observe(t, vecMag(sample.Gyro), drop)

	// Plateau-test strain guardrail fires mid-set, not at set end.
	if s.plateau != nil && s.engine != nil {
		if s.engine.ObservePlateau(t, s.plateau, reading.Value, false) {
			tick.Safety = s.plateau.AbortReason
			s.safetyStop = s.plateau.AbortReason
			s.resetSet()
			tick.State = s.state
			s.persistCalibration()
			s.log.Warn("safety stop", "reason", s.plateau.AbortReason)
			return
		}
	}

	if sample.MotionAvail {
		vel := s.integ.Observe(t, sample.Accel)
		if !s.lastTick.IsZero() {
			s.romAccum += math.Abs(vel) * t.Sub(s.lastTick).Seconds()
		}
		if phase := s.classifier.Observe(t, vel); phase != nil {
			s.motion.ObservePhase(*phase, s.romAccum)
			s.romAccum = 0
			tick.RepDone = phase
		}
		s.motion.ObserveAccel(t, sample.Accel)
	}

	// Forgotten-set watchdog: erratic motion plus falling strain.
	erratic := anomaly.Erraticism(s.norm.Window(30))
	if ev := s.forgotten.Observe(t, erratic, drop); ev != nil {
		tick.Prompt = ev
		s.log.Info("forgotten-set prompt", "erraticism", ev.Erraticism, "strain_delta", ev.StrainDelta)
	} else if s.forgotten.Prompting() {
		pending := s.forgotten.Pending()
		tick.Prompt = pending
		if res, ok := s.forgotten.CheckTimeout(t); ok {
			s.applyResolution(pending, res)
			tick.Prompt = nil
		}
	}

	tick.Live = s.liveIntensity(reading)
}

// targets resolves the per-phase tempo targets for this session.
func (s *Session) targets() tempo.Targets {
	if s.cfg.TargetEccentric > 0 || s.cfg.TargetConcentric > 0 {
		return tempo.Targets{Eccentric: s.cfg.TargetEccentric, Concentric: s.cfg.TargetConcentric}
	}
	return tempo.SymmetricTargets(s.cfg.TargetTempo)
}

// liveIntensity scores the open set from the components accumulated so far.
// Caller holds the mutex.
func (s *Session) liveIntensity(reading models.StrainReading) *intensity.Result {
	phases := s.classifier.Phases()
	comps := intensity.Components{
		Tempo:          tempo.SetScore(phases, s.targets()),
		Smoothness:     s.motion.Smoothness(),
		Consistency:    s.motion.Consistency(),
		StrainModifier: strain.Modifier(reading.Value),
		MotionAvail:    !s.norm.Degraded() && len(phases) > 0,
		StrainAvail:    !reading.Estimated,
	}
	r := intensity.Score(comps)
	return &r
}

// Splits returns per-phase split times for the open set. Trainer view only;
// nil outside a set.
func (s *Session) Splits() []tempo.Split {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSet || s.classifier == nil {
		return nil
	}
	return tempo.Splits(s.classifier.Phases(), s.targets())
}

func (s *Session) tickRest(t time.Time, sample models.SensorSample, reading models.StrainReading, tick *Tick) {
	drop := s.estimator.DropWithin(anomaly.StrainDropWindow)
	s.lifePause.Observe(t, vecMag(sample.Gyro), drop)

	done := s.restCtl.Tick(t, reading.Value, s.lifePause.Active())
	snap := s.restCtl.Snapshot(t)
	tick.Rest = &snap
	if done {
		rp := s.restCtl.Finish(t)
		if s.db != nil {
			if err := s.db.InsertRestPeriod(context.Background(), rp); err != nil {
				s.log.Error("persisting rest period", "error", err)
			}
		}
		s.restCtl = nil
		s.state = StateIdle
		tick.State = s.state
		s.log.Info("rest complete", "actual", rp.ActualDuration, "auto_extended", rp.AutoExtended)
	}
}

// SubmitFeedback forwards a post-set answer into the open feedback window.
func (s *Session) SubmitFeedback(fb models.Feedback) bool {
	s.mu.Lock()
	f := s.finalizer
	s.mu.Unlock()
	if f == nil {
		return false
	}
	return f.Submit(fb)
}

// SubmitPromptResponse answers a pending forgotten-set prompt.
func (s *Session) SubmitPromptResponse(t time.Time, resp models.PromptResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.forgotten.Pending()
	res, ok := s.forgotten.Resolve(t, resp)
	if !ok {
		return false
	}
	s.applyResolution(pending, res)
	return true
}

// applyResolution handles a resolved prompt and persists the event. Caller
// holds the mutex; ev was the pending event before Resolve mutated it.
func (s *Session) applyResolution(ev *models.ForgottenSetEvent, res anomaly.Resolution) {
	if res.Response == models.PromptYes {
		// The set really ended back at the glitch: truncate there when the
		// set is closed.
		s.truncateAt = res.EndSetAt
	} else {
		s.pendingBonus += res.RestBonus
	}
	if s.db != nil && ev != nil {
		if err := s.db.InsertForgottenSetEvent(context.Background(), *ev); err != nil {
			s.log.Error("persisting forgotten-set event", "error", err)
		}
	}
}

// EndSet closes the current set: classifies remaining motion, waits out the
// feedback window, locks the record, persists it, and starts the rest
// countdown. Blocks for up to the feedback window; run it off the tick loop.
func (s *Session) EndSet(ctx context.Context, t time.Time) (*models.SetRecord, error) {
	s.mu.Lock()
	if s.state != StateSet {
		s.mu.Unlock()
		return nil, ErrNotInSet
	}

	end := t
	if !s.truncateAt.IsZero() && s.truncateAt.Before(end) {
		end = s.truncateAt
	}
	phases := s.classifier.Finish(end)
	reps := s.classifier.RepCount()

	reading, strainOK := s.estimator.Latest()
	comps := intensity.Components{
		Tempo:          tempo.SetScore(phases, s.targets()),
		Smoothness:     s.motion.Smoothness(),
		Consistency:    s.motion.Consistency(),
		StrainModifier: strain.Modifier(reading.Value),
		MotionAvail:    !s.norm.Degraded() && len(phases) > 0,
		StrainAvail:    strainOK && !reading.Estimated,
	}
	result := intensity.Score(comps)
	finalizer := s.finalizer
	window := s.cfg.FeedbackWindow
	s.mu.Unlock()

	// Feedback window runs unlocked so Tick and SubmitFeedback proceed.
	fb := finalizer.Await(ctx, window)
	if ctx.Err() != nil {
		// Cancellation mid-window: the set never becomes a record.
		s.mu.Lock()
		s.resetSet()
		s.mu.Unlock()
		return nil, ctx.Err()
	}
	result = intensity.ApplyFeedback(result, fb)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.SetRecord{
		ID:               uuid.New(),
		SessionID:        s.id,
		UserID:           s.cfg.UserID,
		ExerciseID:       s.cfg.ExerciseID,
		SetIndex:         s.setIndex,
		Reps:             reps,
		WeightKg:         s.cfg.WeightKg,
		TempoScore:       comps.Tempo,
		Smoothness:       comps.Smoothness,
		Consistency:      comps.Consistency,
		Feedback:         fb,
		StrainModifier:   comps.StrainModifier,
		UserIntensity:    result.User,
		TrainerIntensity: result.Trainer,
		Estimated:        result.Estimated,
		StartedAt:        s.setStarted,
		CompletedAt:      end,
		LockedAt:         t.Add(window),
	}
	if s.db != nil {
		if err := s.db.InsertSetRecord(context.Background(), rec); err != nil {
			s.resetSet()
			return nil, err
		}
	}

	aborted := false
	if s.engine != nil {
		if s.plateau != nil {
			formUnstable := comps.Smoothness < 40 && comps.MotionAvail
			if s.engine.ObservePlateau(t, s.plateau, reading.Value, formUnstable) {
				aborted = true
				s.safetyStop = s.plateau.AbortReason
				s.persistCalibration()
			} else if s.setIndex >= s.plateau.Sets {
				s.engine.FinishPlateau(t)
				s.persistCalibration()
				s.log.Info("plateau test complete", "sets", s.setIndex)
			}
		} else {
			d := s.engine.EvaluateSet(t, calibration.SetResult{
				TrainerIntensity: result.Trainer,
				Strain:           reading.Value,
				FormUnstable:     comps.Smoothness < 40 && comps.MotionAvail,
			})
			switch {
			case d.SafetyStop:
				aborted = true
				s.safetyStop = d.StopReason
				s.persistCalibration()
			case d.Adjusted || d.Settled || d.RolledBack:
				s.persistCalibration()
			}
		}
	}

	if aborted {
		// No rest countdown after a safety stop; the workout is over.
		s.pendingBonus = 0
		s.resetSet()
		s.state = StateIdle
		s.log.Warn("safety stop", "reason", s.safetyStop)
		s.bus.Publish(Tick{Time: t, State: s.state, Safety: s.safetyStop})
		return &rec, nil
	}

	planned := rest.PlanDuration(reading.Value)
	s.restCtl = rest.NewController(rec.ID, t, planned, s.pendingBonus, s.log)
	s.pendingBonus = 0
	s.resetSet()
	s.state = StateResting
	s.log.Info("set locked",
		"set", rec.SetIndex,
		"reps", rec.Reps,
		"user_intensity", rec.UserIntensity,
		"trainer_intensity", rec.TrainerIntensity,
		"feedback", rec.Feedback)
	return &rec, nil
}

// Cancel abandons an in-progress set. No SetRecord is written.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSet {
		s.resetSet()
		s.state = StateIdle
		s.log.Info("set cancelled", "set", s.setIndex)
	}
}

// resetSet clears per-set machinery. Caller holds the mutex.
func (s *Session) resetSet() {
	s.classifier = nil
	s.integ = nil
	s.motion = nil
	s.finalizer = nil
	s.truncateAt = time.Time{}
	if s.state == StateSet {
		s.state = StateIdle
	}
}

// Status is the session snapshot served by the device API.
type Status struct {
	SessionID uuid.UUID                 `json:"session_id"`
	State     State                     `json:"state"`
	Mode      models.SessionMode        `json:"mode"`
	SetIndex  int                       `json:"set_index"`
	Rest      *rest.Snapshot            `json:"rest,omitempty"`
	Prompt    *models.ForgottenSetEvent `json:"prompt,omitempty"`
	Degraded  bool                      `json:"degraded"`
	Safety    string                    `json:"safety,omitempty"`
}

// Status returns the current snapshot.
func (s *Session) Status(t time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		SessionID: s.id,
		State:     s.state,
		Mode:      s.cfg.Mode,
		SetIndex:  s.setIndex,
		Prompt:    s.forgotten.Pending(),
		Degraded:  s.norm.Degraded(),
	}
	if s.safetyStop != "" {
		st.Safety = s.safetyStop
	}
	if s.restCtl != nil {
		snap := s.restCtl.Snapshot(t)
		st.Rest = &snap
	}
	return st
}

func (s *Session) persistCalibration() {
	if s.db == nil || s.engine == nil {
		return
	}
	if err := s.db.SaveCalibrationState(context.Background(), s.engine.State()); err != nil {
		s.log.Error("persisting calibration state", "error", err)
	}
}

func vecMag(v models.Vec3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}
