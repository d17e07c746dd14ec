// Package api is the device's local HTTP surface: the coaching UI reads
// published engine state and posts athlete responses. Raw sensor data and
// strain are never exposed here.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/setforge/internal/calibration"
	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/session"
	"github.com/meltforce/setforge/internal/store"
	"github.com/meltforce/setforge/internal/tempo"
)

// Workout is the slice of the session surface the API drives.
type Workout interface {
	Status(t time.Time) session.Status
	Splits() []tempo.Split
	BeginSet(t time.Time) error
	EndSet(ctx context.Context, t time.Time) (*models.SetRecord, error)
	Cancel()
	SubmitFeedback(fb models.Feedback) bool
	SubmitPromptResponse(t time.Time, resp models.PromptResponse) bool
	Subscribe(ch chan<- session.Tick) func()
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	workout Workout
	engine  *calibration.Engine // nil in free-mode-only setups
	db      *store.Store
	log     *slog.Logger
	router  chi.Router
}

// New creates a Server with all routes configured.
func New(workout Workout, engine *calibration.Engine, db *store.Store, log *slog.Logger) *Server {
	s := &Server{
		workout: workout,
		engine:  engine,
		db:      db,
		log:     log,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/api/v1/session", s.handleStatus)
	s.router.Get("/api/v1/session/summary", s.handleSessionSummary)
	s.router.Get("/api/v1/sets", s.handleSetHistory)
	s.router.Get("/api/v1/sets/{id}/rest", s.handleRestForSet)
	s.router.Get("/api/v1/calibration", s.handleCalibration)
	s.router.Get("/api/v1/pr", s.handlePRPrediction)
	s.router.Get("/api/v1/live", s.handleLive)

	s.router.Post("/api/v1/session/set/begin", s.handleBeginSet)
	s.router.Post("/api/v1/session/set/end", s.handleEndSet)
	s.router.Post("/api/v1/session/set/cancel", s.handleCancelSet)
	s.router.Post("/api/v1/feedback", s.handleFeedback)
	s.router.Post("/api/v1/prompt", s.handlePrompt)
	s.router.Post("/api/v1/supplements", s.handleLogSupplement)
	s.router.Put("/api/v1/baseline", s.handleSaveBaseline)
}
