package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/calibration"
	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/privacy"
	"github.com/meltforce/setforge/internal/session"
	"github.com/meltforce/setforge/internal/signal"
	"github.com/meltforce/setforge/internal/store"
	"github.com/meltforce/setforge/internal/strain"
	"github.com/meltforce/setforge/internal/tempo"
)

func newTestServer(t *testing.T, engine *calibration.Engine) (*Server, *store.Store) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	norm := signal.NewNormalizer(signal.DefaultWindow, nil)
	sess := session.New(session.Config{
		UserID:         1,
		ExerciseID:     "bench_press",
		Mode:           models.ModeFree,
		TargetTempo:    2 * time.Second,
		FeedbackWindow: 10 * time.Millisecond,
	}, norm, strain.DefaultBaseline(), engine, db, nil)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sess, engine, db, log), db
}

func doJSON(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// TestStatusEndpoint returns the idle session snapshot.
func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st session.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if st.State != session.StateIdle {
		t.Errorf("state = %v, want idle", st.State)
	}
}

// TestBeginSetConflict rejects a second begin.
func TestBeginSetConflict(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/session/set/begin", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("first begin = %d, want 200", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/session/set/begin", "", nil); rec.Code != http.StatusConflict {
		t.Errorf("second begin = %d, want 409", rec.Code)
	}
}

// TestEndSetOutsideSet is a conflict.
func TestEndSetOutsideSet(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/session/set/end", "", nil); rec.Code != http.StatusConflict {
		t.Errorf("end outside set = %d, want 409", rec.Code)
	}
}

// TestFeedbackValidation covers bad values and the closed window.
func TestFeedbackValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/feedback", `{"feedback":"so-so"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown feedback = %d, want 400", rec.Code)
	}

	// No set, no open window.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/feedback", `{"feedback":"challenge me"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("feedback without window = %d, want 409", rec.Code)
	}
}

// TestPromptValidation covers bad responses and no-prompt conflicts.
func TestPromptValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/prompt", `{"response":"maybe"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad response = %d, want 400", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/prompt", `{"response":"no"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("no prompt pending = %d, want 409", rec.Code)
	}
}

// TestSetHistoryRoleCapping hides the uncapped trainer score from athletes.
func TestSetHistoryRoleCapping(t *testing.T) {
	srv, db := newTestServer(t, nil)

	now := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)
	rec := models.SetRecord{
		ID:               uuid.New(),
		SessionID:        uuid.New(),
		UserID:           1,
		ExerciseID:       "bench_press",
		SetIndex:         1,
		Feedback:         models.FeedbackNone,
		UserIntensity:    100,
		TrainerIntensity: 104.5,
		StartedAt:        now,
		CompletedAt:      now.Add(40 * time.Second),
		LockedAt:         now.Add(time.Minute),
	}
	if err := db.InsertSetRecord(context.Background(), rec); err != nil {
		t.Fatalf("seeding record: %v", err)
	}

	// Athlete view: trainer score collapsed to the capped value.
	resp := doJSON(t, srv, http.MethodGet, "/api/v1/sets?exercise=bench_press", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("athlete history = %d, want 200", resp.Code)
	}
	var athlete []models.SetRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &athlete); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if athlete[0].TrainerIntensity != 100 {
		t.Errorf("athlete sees trainer intensity %v, want capped 100", athlete[0].TrainerIntensity)
	}

	// Trainer view: uncapped.
	resp = doJSON(t, srv, http.MethodGet, "/api/v1/sets?exercise=bench_press", "", map[string]string{"X-Role": "trainer"})
	var trainer []models.SetRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &trainer); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if trainer[0].TrainerIntensity != 104.5 {
		t.Errorf("trainer sees %v, want 104.5", trainer[0].TrainerIntensity)
	}
}

// TestPRPredictionGating maps the calibration errors onto HTTP statuses.
func TestPRPredictionGating(t *testing.T) {
	engine := calibration.NewEngine(models.CalibrationState{
		UserID:          1,
		ExerciseID:      "bench_press",
		Week:            1,
		Params:          models.TrainingParams{Sets: 3, Reps: 8, VolumeKg: 60, TempoSec: 2},
		TargetIntensity: 98,
		StrainCeiling:   88,
		OneRepMaxKg:     100,
	}, nil)
	srv, _ := newTestServer(t, engine)

	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/pr", "", nil); rec.Code != http.StatusForbidden {
		t.Errorf("athlete pr = %d, want 403", rec.Code)
	}

	trainer := map[string]string{"X-Role": "trainer"}
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/pr", "", trainer)
	if rec.Code != http.StatusOK {
		t.Fatalf("trainer pr = %d, want 200", rec.Code)
	}
	var body map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["predicted_one_rep_max_kg"] <= 0 {
		t.Errorf("prediction = %v, want positive", body["predicted_one_rep_max_kg"])
	}

	// Second request inside the cycle conflicts.
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/pr", "", trainer); rec.Code != http.StatusConflict {
		t.Errorf("repeat pr = %d, want 409", rec.Code)
	}
}

// TestPRPredictionWithoutEngine is a 404.
func TestPRPredictionWithoutEngine(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/pr", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("pr without engine = %d, want 404", rec.Code)
	}
}

// TestLogSupplement stores an entry, queues it for sync, and echoes the hash
// but never the text.
func TestLogSupplement(t *testing.T) {
	srv, db := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/supplements", `{"text":"creatine 5g"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "creatine") {
		t.Errorf("response leaks supplement text: %s", rec.Body.String())
	}
	var entry models.SupplementEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if entry.PublicHash != privacy.HashPublic("creatine 5g") {
		t.Errorf("hash = %q, want hash of the logged text", entry.PublicHash)
	}

	pending, err := db.UnsyncedSupplements(context.Background(), 10)
	if err != nil {
		t.Fatalf("querying unsynced: %v", err)
	}
	if len(pending) != 1 || pending[0].Text != "creatine 5g" {
		t.Errorf("pending = %+v, want the stored entry with full text", pending)
	}
}

// TestLogSupplementRequiresText rejects an empty entry.
func TestLogSupplementRequiresText(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/supplements", `{"rx":true}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestSessionSummaryEmpty returns a zeroed summary before any set locks.
func TestSessionSummaryEmpty(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/session/summary", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var sum SessionSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if sum.Sets != 0 || sum.AvgIntensity != 0 {
		t.Errorf("summary = %+v, want zeroed", sum)
	}
	if sum.SessionID == uuid.Nil {
		t.Error("summary missing session id")
	}
}

// TestSaveBaseline persists personal calibration values for the next session.
func TestSaveBaseline(t *testing.T) {
	srv, db := newTestServer(t, nil)

	body := `{"resting_hr":52,"max_hr":186,"resting_spo2":98,"recovery_half_life_sec":45}`
	rec := doJSON(t, srv, http.MethodPut, "/api/v1/baseline", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	b, err := db.Baseline(context.Background(), 1)
	if err != nil {
		t.Fatalf("loading baseline: %v", err)
	}
	if b.RestingHR != 52 || b.MaxHR != 186 || b.RecoveryHalfLife != 45*time.Second {
		t.Errorf("baseline = %+v, want saved values", b)
	}
}

// TestSaveBaselineValidation rejects an inverted heart-rate range.
func TestSaveBaselineValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	body := `{"resting_hr":190,"max_hr":60}`
	if rec := doJSON(t, srv, http.MethodPut, "/api/v1/baseline", body, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestRestForSetNotFound is a 404 for an unknown set.
func TestRestForSetNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	path := "/api/v1/sets/" + uuid.NewString() + "/rest"
	if rec := doJSON(t, srv, http.MethodGet, path, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/sets/not-a-uuid/rest", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestStatusSplitsTrainerOnly shows per-phase split times to the trainer
// role and hides them from athletes.
func TestStatusSplitsTrainerOnly(t *testing.T) {
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	norm := signal.NewNormalizer(signal.DefaultWindow, nil)
	sess := session.New(session.Config{
		UserID:      1,
		ExerciseID:  "bench_press",
		Mode:        models.ModeFree,
		TargetTempo: 2 * time.Second,
	}, norm, strain.DefaultBaseline(), nil, db, nil)
	srv := New(sess, nil, db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)
	if err := sess.BeginSet(start); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	// Step acceleration up and then hard into reverse so the classifier
	// closes at least one phase.
	at := start
	step := func(n int, accelZ float64) {
		for i := 0; i < n; i++ {
			at = at.Add(100 * time.Millisecond)
			norm.UpdateHeartRate(at, 150)
			norm.UpdateSpO2(at, 97)
			norm.UpdateMotion(at, models.Vec3{Z: accelZ}, models.Vec3{X: 3})
			sess.Tick(at)
		}
	}
	step(3, 0)
	step(6, 8)
	step(6, -8)

	athlete := doJSON(t, srv, http.MethodGet, "/api/v1/session", "", nil)
	if athlete.Code != http.StatusOK {
		t.Fatalf("athlete status = %d, want 200", athlete.Code)
	}
	if strings.Contains(athlete.Body.String(), `"splits"`) {
		t.Error("athlete view exposes split times")
	}

	trainer := doJSON(t, srv, http.MethodGet, "/api/v1/session", "", map[string]string{"X-Role": "trainer"})
	if trainer.Code != http.StatusOK {
		t.Fatalf("trainer status = %d, want 200", trainer.Code)
	}
	var view struct {
		Splits []tempo.Split `json:"splits"`
	}
	if err := json.Unmarshal(trainer.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(view.Splits) == 0 {
		t.Error("trainer view missing split times")
	}
}
