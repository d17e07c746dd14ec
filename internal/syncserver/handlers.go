package syncserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/privacy"
)

func (s *Server) handleIngestSet(w http.ResponseWriter, r *http.Request) {
	var rec models.SetRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if !rec.Locked() {
		// Devices only upload after the feedback window closes.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "set record is not locked"})
		return
	}

	n, err := s.db.InsertSetRecords(r.Context(), []models.SetRecord{rec})
	if err != nil {
		s.log.Error("set ingest error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"inserted": n})
}

func (s *Server) handleIngestSupplement(w http.ResponseWriter, r *http.Request) {
	// Strict decoding: the only accepted shape is the hashed form. A payload
	// carrying extra fields (like full text) is refused outright.
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var entry privacy.OutboundSupplement
	if err := dec.Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if entry.PublicHash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "public_hash is required"})
		return
	}

	n, err := s.db.InsertSupplementHashes(r.Context(), []privacy.OutboundSupplement{entry})
	if err != nil {
		s.log.Error("supplement ingest error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"inserted": n})
}

func (s *Server) handleIngestCalibration(w http.ResponseWriter, r *http.Request) {
	var st models.CalibrationState
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if st.ExerciseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise_id is required"})
		return
	}

	if err := s.db.UpsertCalibrationState(r.Context(), st); err != nil {
		s.log.Error("calibration ingest error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuerySets(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	recs, err := s.db.QuerySetRecords(r.Context(), userParam(r), r.URL.Query().Get("exercise"), start, end, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	recs, err := s.db.LatestSession(r.Context(), userParam(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleIntensitySummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	summary, err := s.db.GetIntensitySummary(r.Context(), start, end, userParam(r), r.URL.Query().Get("exercise"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetCalibration(w http.ResponseWriter, r *http.Request) {
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}

	st, err := s.db.LatestCalibrationState(r.Context(), userParam(r), exercise)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if st == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no calibration state synced"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}

	p, err := s.db.GetPRPrediction(r.Context(), time.Now(), userParam(r), exercise)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no calibration state synced"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleQuerySupplements(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	hashes, err := s.db.QuerySupplementHashes(r.Context(), userParam(r), start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, hashes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func userParam(r *http.Request) int {
	if v := r.URL.Query().Get("user"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			return id
		}
	}
	return 1
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 7 days
		end = time.Now()
		start = end.AddDate(0, 0, -7)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
