package syncserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// Validation paths reject bad payloads before the repository is touched, so
// these tests run against a server with no database behind it.
func newValidationServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(nil, "secret", log)
}

func doIngest(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestIngestSetRejectsBadJSON returns 400 for malformed payloads.
func TestIngestSetRejectsBadJSON(t *testing.T) {
	s := newValidationServer(t)
	if rec := doIngest(t, s, "/api/v1/sets", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestIngestSetRejectsUnlocked refuses records whose feedback window is
// still open.
func TestIngestSetRejectsUnlocked(t *testing.T) {
	s := newValidationServer(t)
	body := `{"id":"6b1e2c4a-9f1d-4f6e-8a3b-2c5d7e9f1a3b","user_id":1,"exercise_id":"bench_press","set_index":1}`
	if rec := doIngest(t, s, "/api/v1/sets", body); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

// TestIngestSupplementRejectsExtraFields refuses any payload that carries
// more than the hashed wire form.
func TestIngestSupplementRejectsExtraFields(t *testing.T) {
	s := newValidationServer(t)
	body := `{"user_id":1,"public_hash":"abc","created_at":"2026-03-09T08:00:00Z","text":"creatine 5g"}`
	if rec := doIngest(t, s, "/api/v1/supplements", body); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestIngestSupplementRequiresHash refuses entries without a public hash.
func TestIngestSupplementRequiresHash(t *testing.T) {
	s := newValidationServer(t)
	body := `{"user_id":1,"public_hash":"","created_at":"2026-03-09T08:00:00Z"}`
	if rec := doIngest(t, s, "/api/v1/supplements", body); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestIngestCalibrationRequiresExercise refuses snapshots without an
// exercise ID.
func TestIngestCalibrationRequiresExercise(t *testing.T) {
	s := newValidationServer(t)
	body := `{"user_id":1,"week":2}`
	if rec := doIngest(t, s, "/api/v1/calibration", body); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestIngestRequiresAPIKey keeps all ingest routes behind the key.
func TestIngestRequiresAPIKey(t *testing.T) {
	s := newValidationServer(t)
	for _, path := range []string{"/api/v1/sets", "/api/v1/supplements", "/api/v1/calibration"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
}

// TestCalibrationQueryRequiresExercise returns 400 without the parameter.
func TestCalibrationQueryRequiresExercise(t *testing.T) {
	s := newValidationServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/calibration", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestParseTimeRange covers the accepted date formats and defaults.
func TestParseTimeRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sets?start=2026-03-01&end=2026-03-08", nil)
	start, end, err := parseTimeRange(req)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if start != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("start = %v", start)
	}
	// Date-only end dates cover the whole day.
	if end != time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) {
		t.Errorf("end = %v", end)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sets?start=bogus", nil)
	if _, _, err := parseTimeRange(req); err == nil {
		t.Error("expected error for bogus start date")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sets", nil)
	start, end, err = parseTimeRange(req)
	if err != nil {
		t.Fatalf("default range failed: %v", err)
	}
	if !end.After(start) || end.Sub(start) < 6*24*time.Hour {
		t.Errorf("default range = %v..%v, want about a week", start, end)
	}
}

// TestUserParamDefault falls back to user 1 on missing or bad values.
func TestUserParamDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sets", nil)
	if got := userParam(req); got != 1 {
		t.Errorf("userParam = %d, want 1", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sets?user=7", nil)
	if got := userParam(req); got != 7 {
		t.Errorf("userParam = %d, want 7", got)
	}
}
