// Package store is the on-device SQLite persistence layer. Everything the
// engine keeps between sessions lives here; raw sensor samples and strain
// readings deliberately have no table.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the device database and provides repository methods.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the device database at dir/setforge.db and
// ensures the schema exists.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "setforge.db"))
	if err != nil {
		return nil, fmt.Errorf("opening device db: %w", err)
	}
	// modernc's driver is not safe for concurrent writers over separate
	// connections to the same file.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the device database.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS set_records (
		id                TEXT PRIMARY KEY,
		session_id        TEXT NOT NULL,
		user_id           INTEGER NOT NULL,
		exercise_id       TEXT NOT NULL,
		set_index         INTEGER NOT NULL,
		reps              INTEGER NOT NULL,
		weight_kg         REAL NOT NULL,
		tempo_score       REAL NOT NULL,
		smoothness        REAL NOT NULL,
		consistency       REAL NOT NULL,
		feedback          TEXT NOT NULL,
		strain_modifier   REAL NOT NULL,
		user_intensity    REAL NOT NULL,
		trainer_intensity REAL NOT NULL,
		estimated         INTEGER NOT NULL,
		started_at        TIMESTAMP NOT NULL,
		completed_at      TIMESTAMP NOT NULL,
		locked_at         TIMESTAMP NOT NULL,
		synced            INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_set_records_unsynced ON set_records (synced)`,
	`CREATE TABLE IF NOT EXISTS rest_periods (
		set_id                TEXT PRIMARY KEY,
		planned_ns            INTEGER NOT NULL,
		actual_ns             INTEGER NOT NULL,
		auto_extended         INTEGER NOT NULL,
		suppressed_life_pause INTEGER NOT NULL,
		started_at            TIMESTAMP NOT NULL,
		ended_at              TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS forgotten_set_events (
		id           TEXT PRIMARY KEY,
		session_id   TEXT NOT NULL,
		triggered_at TIMESTAMP NOT NULL,
		strain_delta REAL NOT NULL,
		erraticism   REAL NOT NULL,
		response     TEXT NOT NULL,
		action       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS calibration_states (
		user_id          INTEGER NOT NULL,
		exercise_id      TEXT NOT NULL,
		week             INTEGER NOT NULL,
		mode             TEXT NOT NULL,
		sets             INTEGER NOT NULL,
		reps             INTEGER NOT NULL,
		volume_kg        REAL NOT NULL,
		tempo_sec        REAL NOT NULL,
		stable_sets      INTEGER NOT NULL,
		stable_reps      INTEGER NOT NULL,
		stable_volume_kg REAL NOT NULL,
		stable_tempo_sec REAL NOT NULL,
		target_intensity REAL NOT NULL,
		strain_ceiling   REAL NOT NULL,
		last_delta       TEXT NOT NULL,
		one_rep_max_kg   REAL NOT NULL,
		needs_review     INTEGER NOT NULL,
		pr_predicted_at  TIMESTAMP,
		updated_at       TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, exercise_id, week)
	)`,
	`CREATE TABLE IF NOT EXISTS supplement_entries (
		id          TEXT PRIMARY KEY,
		user_id     INTEGER NOT NULL,
		full_text   TEXT NOT NULL,
		public_hash TEXT NOT NULL,
		rx          INTEGER NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		synced      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS baselines (
		user_id            INTEGER PRIMARY KEY,
		resting_hr         REAL NOT NULL,
		max_hr             REAL NOT NULL,
		resting_spo2       REAL NOT NULL,
		recovery_half_life INTEGER NOT NULL
	)`,
}
