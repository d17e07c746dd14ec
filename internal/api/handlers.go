package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/calibration"
	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/privacy"
	"github.com/meltforce/setforge/internal/session"
	"github.com/meltforce/setforge/internal/strain"
	"github.com/meltforce/setforge/internal/tempo"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.workout.Status(time.Now())
	if TrainerRole(r) {
		// Trainers additionally see the per-phase split times of the
		// open set; athletes only get the aggregate scores.
		writeJSON(w, http.StatusOK, struct {
			session.Status
			Splits []tempo.Split `json:"splits,omitempty"`
		}{st, s.workout.Splits()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetHistory(w http.ResponseWriter, r *http.Request) {
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	userID := 1
	if v := r.URL.Query().Get("user"); v != "" {
		var err error
		if userID, err = strconv.Atoi(v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user"})
			return
		}
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		var err error
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
	}

	recs, err := s.db.QuerySetRecords(r.Context(), userID, exercise, limit)
	if err != nil {
		s.log.Error("set history query", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	view := recs
	if !TrainerRole(r) {
		// Athletes see the capped score only.
		view = make([]models.SetRecord, len(recs))
		for i, rec := range recs {
			rec.TrainerIntensity = rec.UserIntensity
			view[i] = rec
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no calibration running"})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handlePRPrediction(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no calibration running"})
		return
	}
	est, err := s.engine.PredictPR(time.Now(), TrainerRole(r))
	switch {
	case errors.Is(err, calibration.ErrTrainerOnly):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, calibration.ErrPredictionCooldown):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"predicted_one_rep_max_kg": est})
}

func (s *Server) handleBeginSet(w http.ResponseWriter, r *http.Request) {
	if err := s.workout.BeginSet(time.Now()); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.workout.Status(time.Now()))
}

func (s *Server) handleEndSet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workout.EndSet(r.Context(), time.Now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrNotInSet) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if !TrainerRole(r) {
		capped := *rec
		capped.TrainerIntensity = capped.UserIntensity
		rec = &capped
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelSet(w http.ResponseWriter, r *http.Request) {
	s.workout.Cancel()
	writeJSON(w, http.StatusOK, s.workout.Status(time.Now()))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	fb, ok := models.NormalizeFeedback(body.Feedback)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown feedback value"})
		return
	}
	if !s.workout.SubmitFeedback(fb) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "feedback window closed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Response models.PromptResponse `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if body.Response != models.PromptYes && body.Response != models.PromptNo {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "response must be yes or no"})
		return
	}
	if !s.workout.SubmitPromptResponse(time.Now(), body.Response) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no prompt pending"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleRestForSet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid set id"})
		return
	}
	rp, err := s.db.RestPeriodForSet(r.Context(), id)
	if err != nil {
		s.log.Error("rest period query", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rest period for set"})
		return
	}
	writeJSON(w, http.StatusOK, rp)
}

// SessionSummary is the post-workout view for the coaching UI.
type SessionSummary struct {
	SessionID    uuid.UUID                  `json:"session_id"`
	Sets         int                        `json:"sets"`
	AvgIntensity float64                    `json:"avg_intensity"`
	BestSet      float64                    `json:"best_set"`
	Prompts      []models.ForgottenSetEvent `json:"prompts,omitempty"`
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id := s.workout.Status(time.Now()).SessionID

	intensities, err := s.db.SessionIntensities(r.Context(), id)
	if err != nil {
		s.log.Error("session summary query", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	prompts, err := s.db.ForgottenSetEvents(r.Context(), id)
	if err != nil {
		s.log.Error("session summary prompts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	sum := SessionSummary{SessionID: id, Sets: len(intensities), Prompts: prompts}
	for _, v := range intensities {
		sum.AvgIntensity += v
		if v > sum.BestSet {
			sum.BestSet = v
		}
	}
	if len(intensities) > 0 {
		sum.AvgIntensity /= float64(len(intensities))
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSaveBaseline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID              int     `json:"user_id"`
		RestingHR           float64 `json:"resting_hr"`
		MaxHR               float64 `json:"max_hr"`
		RestingSpO2         float64 `json:"resting_spo2"`
		RecoveryHalfLifeSec float64 `json:"recovery_half_life_sec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if body.RestingHR <= 0 || body.MaxHR <= body.RestingHR {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "resting_hr and max_hr must be positive with max above resting"})
		return
	}
	if body.UserID == 0 {
		body.UserID = 1
	}

	b := strain.Baseline{
		RestingHR:        body.RestingHR,
		MaxHR:            body.MaxHR,
		RestingSpO2:      body.RestingSpO2,
		RecoveryHalfLife: time.Duration(body.RecoveryHalfLifeSec * float64(time.Second)),
	}
	if err := s.db.SaveBaseline(r.Context(), body.UserID, b); err != nil {
		s.log.Error("saving baseline", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	// Takes effect on the next session; the running estimator keeps its
	// baseline for consistency within the workout.
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleLogSupplement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID int    `json:"user_id"`
		Text   string `json:"text"`
		Rx     bool   `json:"rx"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if body.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if body.UserID == 0 {
		body.UserID = 1
	}

	entry := models.SupplementEntry{
		ID:         uuid.New(),
		UserID:     body.UserID,
		Text:       body.Text,
		PublicHash: privacy.HashPublic(body.Text),
		Rx:         body.Rx,
		CreatedAt:  time.Now(),
	}
	if err := s.db.InsertSupplement(r.Context(), entry); err != nil {
		s.log.Error("inserting supplement", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	// The response echoes the entry's json view, which carries the hash but
	// never the text.
	writeJSON(w, http.StatusCreated, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
