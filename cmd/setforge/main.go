package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meltforce/setforge/internal/api"
	"github.com/meltforce/setforge/internal/calibration"
	"github.com/meltforce/setforge/internal/config"
	"github.com/meltforce/setforge/internal/cue"
	"github.com/meltforce/setforge/internal/intake"
	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/session"
	sensors "github.com/meltforce/setforge/internal/signal"
	"github.com/meltforce/setforge/internal/store"
	uplink "github.com/meltforce/setforge/internal/sync"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exercise := flag.String("exercise", "", "exercise for this workout")
	mode := flag.String("mode", "free", "session mode: free, calibration or plateau_test")
	weight := flag.Float64("weight", 0, "working weight in kg")
	reps := flag.Int("reps", 0, "planned reps per set")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("SetForge starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDevice(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if *exercise == "" {
		log.Error("-exercise is required")
		os.Exit(1)
	}
	sessionMode := models.SessionMode(*mode)
	switch sessionMode {
	case models.ModeFree, models.ModeCalibration, models.ModeSessionPlateau:
	default:
		log.Error("unknown session mode", "mode", *mode)
		os.Exit(1)
	}

	// Open local store
	db, err := store.Open(cfg.Device.StorePath)
	if err != nil {
		log.Error("failed to open store", "path", cfg.Device.StorePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("store opened", "path", cfg.Device.StorePath)

	ctx := context.Background()

	baseline, err := db.Baseline(ctx, cfg.Device.UserID)
	if err != nil {
		log.Error("failed to load baseline", "error", err)
		os.Exit(1)
	}

	// Resume the calibration loop for this exercise, or start week 1.
	var engine *calibration.Engine
	var weeklyBest []float64
	targetTempo := 3 * time.Second
	if sessionMode != models.ModeFree {
		st, err := db.LatestCalibrationState(ctx, cfg.Device.UserID, *exercise)
		if err != nil {
			log.Error("failed to load calibration state", "error", err)
			os.Exit(1)
		}
		if st == nil {
			log.Info("no calibration history, starting full calibration", "exercise", *exercise)
			st = &models.CalibrationState{
				UserID:          cfg.Device.UserID,
				ExerciseID:      *exercise,
				Week:            1,
				Mode:            models.ModeFullCalibration,
				TargetIntensity: cfg.Engine.TargetIntensity,
				StrainCeiling:   cfg.Engine.StrainCeiling,
				UpdatedAt:       time.Now(),
			}
		}
		engine = calibration.NewEngine(*st, log)
		if st.Params.TempoSec > 0 {
			targetTempo = time.Duration(st.Params.TempoSec * float64(time.Second))
		}

		// A calendar week boundary since the last session advances the
		// program week and re-opens the first-set recalibration.
		week, firstOfWeek := st.Week, false
		if ly, lw := st.UpdatedAt.ISOWeek(); !st.UpdatedAt.IsZero() {
			if cy, cw := time.Now().ISOWeek(); ly != cy || lw != cw {
				week++
				firstOfWeek = true
			}
		}
		engine.BeginSession(week, firstOfWeek)

		weeklyBest, err = db.WeeklyBestIntensity(ctx, cfg.Device.UserID, *exercise, time.Now().AddDate(0, 0, -35))
		if err != nil {
			log.Error("failed to load weekly history", "error", err)
			os.Exit(1)
		}
		if sessionMode != models.ModeSessionPlateau && calibration.DetectPlateau(weeklyBest) {
			log.Info("progress has plateaued, a plateau test is available", "exercise", *exercise)
		}
	}

	// Wearable stream in, semantic cues out.
	norm := sensors.NewNormalizer(0, log)
	sub, err := intake.Connect(cfg.Broker.URL, cfg.Broker.ClientID, norm, log)
	if err != nil {
		log.Error("failed to connect wearable stream", "error", err)
		os.Exit(1)
	}
	defer sub.Close()

	cues, err := cue.Connect(cfg.Broker.URL, cfg.Broker.ClientID+"-cue", log)
	if err != nil {
		log.Error("failed to connect cue publisher", "error", err)
		os.Exit(1)
	}
	defer cues.Close()

	// The plateau test only runs with both links up: the wearable supplies
	// strain monitoring, the cue channel the tempo pulses.
	var plateau *models.PlateauTestSession
	var targetEcc, targetCon time.Duration
	if sessionMode == models.ModeSessionPlateau {
		caps := calibration.Capabilities{
			Wearable:   sub.Connected(),
			Headphones: cues.Connected(),
		}
		plateau, err = engine.PlanPlateauTest(time.Now(), caps, weeklyBest)
		if err != nil {
			log.Error("failed to plan plateau test", "error", err)
			os.Exit(1)
		}
		if err := db.SaveCalibrationState(ctx, engine.State()); err != nil {
			log.Error("failed to persist calibration state", "error", err)
			os.Exit(1)
		}
		*reps = plateau.Reps
		*weight = plateau.WeightKg
		// Slow-eccentric split of the planned time under tension.
		targetEcc, targetCon = plateau.TempoTargets()
		log.Info("plateau test planned",
			"weight_kg", plateau.WeightKg,
			"sets", plateau.Sets,
			"reps", plateau.Reps,
			"time_under_tension", plateau.TimeUnderTension)
	}

	sess := session.New(session.Config{
		UserID:           cfg.Device.UserID,
		ExerciseID:       *exercise,
		Mode:             sessionMode,
		Inverted:         cfg.Engine.InvertPhaseOrder,
		TargetTempo:      targetTempo,
		TargetEccentric:  targetEcc,
		TargetConcentric: targetCon,
		Reps:             *reps,
		WeightKg:         *weight,
		Plateau:          plateau,
		FeedbackWindow:   time.Duration(cfg.Engine.FeedbackWindowSec) * time.Second,
		PromptWindow:     time.Duration(cfg.Engine.PromptWindowSec) * time.Second,
	}, norm, baseline, engine, db, log)
	log.Info("session ready",
		"session", sess.ID(),
		"exercise", *exercise,
		"mode", sessionMode)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Engine tick loop
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Engine.TickIntervalMS) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case t := <-ticker.C:
				sess.Tick(t)
			}
		}
	}()

	go bridgeCues(runCtx, sess, cues)

	// Background sync uploader
	if cfg.Sync.Enabled {
		up := uplink.NewUploader(db, uplink.NewClient(cfg.Sync.URL, cfg.Sync.APIKey), log)
		go up.Run(runCtx, time.Duration(cfg.Sync.IntervalSec)*time.Second)
		log.Info("sync uploader started", "url", cfg.Sync.URL, "interval_sec", cfg.Sync.IntervalSec)
	}

	// Daily retention sweep over stored supplement text.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				n, err := db.WipeExpiredSupplements(runCtx, now, false)
				if err != nil {
					log.Error("supplement retention sweep failed", "error", err)
				} else if n > 0 {
					log.Info("supplement retention sweep", "wiped", n)
				}
			}
		}
	}()

	// Device API
	srv := api.New(sess, engine, db, log)
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv}

	go func() {
		log.Info("device API listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("engine stopped")
}

// bridgeCues mirrors session transitions onto the cue bus: set begin/end on
// state changes, a tempo pulse for the phase that starts as each classified
// phase ends.
func bridgeCues(ctx context.Context, sess *session.Session, cues *cue.Publisher) {
	ch := make(chan session.Tick, 64)
	unsub := sess.Subscribe(ch)
	defer unsub()

	prev := session.StateIdle
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ch:
			if tick.State != prev {
				switch {
				case tick.State == session.StateSet:
					cues.SetBegun(tick.Time)
				case prev == session.StateSet:
					cues.SetEnded(tick.Time)
				}
				prev = tick.State
			}
			if tick.RepDone != nil {
				cues.Pulse(tick.Time, cue.ForPhase(*tick.RepDone))
			}
			if tick.Safety != "" {
				cues.SafetyStop(tick.Time, tick.Safety)
			}
		}
	}
}
