// Package syncserver is the HTTP surface of the sync server. Devices push
// locked set records, supplement hashes and calibration snapshots through
// API-key-protected ingest routes; the trainer dashboard and MCP tools read
// the aggregate endpoints, which tsnet access control protects instead.
package syncserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/setforge/internal/syncstore"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db     *syncstore.DB
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(db *syncstore.DB, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
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

	// Device ingest (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/api/v1/sets", s.handleIngestSet)
		r.Post("/api/v1/supplements", s.handleIngestSupplement)
		r.Post("/api/v1/calibration", s.handleIngestCalibration)
	})

	// Read API (no auth, tsnet handles access)
	s.router.Get("/api/v1/sets", s.handleQuerySets)
	s.router.Get("/api/v1/sessions/latest", s.handleLatestSession)
	s.router.Get("/api/v1/summary/intensity", s.handleIntensitySummary)
	s.router.Get("/api/v1/calibration", s.handleGetCalibration)
	s.router.Get("/api/v1/prediction", s.handleGetPrediction)
	s.router.Get("/api/v1/supplements", s.handleQuerySupplements)
}
