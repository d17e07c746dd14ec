package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
)

// ErrNotLocked means a set record arrived before its feedback window
// closed. Only locked records are durable.
var ErrNotLocked = errors.New("store: set record is not locked")

// InsertSetRecord persists a finalized set. Records arrive locked; the
// feedback window is resolved in memory before anything touches the store.
func (s *Store) InsertSetRecord(ctx context.Context, r models.SetRecord) error {
	if !r.Locked() {
		return fmt.Errorf("%w: %s", ErrNotLocked, r.ID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO set_records (id, session_id, user_id, exercise_id, set_index,
		 reps, weight_kg, tempo_score, smoothness, consistency, feedback,
		 strain_modifier, user_intensity, trainer_intensity, estimated,
		 started_at, completed_at, locked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.SessionID.String(), r.UserID, r.ExerciseID, r.SetIndex,
		r.Reps, r.WeightKg, r.TempoScore, r.Smoothness, r.Consistency, string(r.Feedback),
		r.StrainModifier, r.UserIntensity, r.TrainerIntensity, r.Estimated,
		r.StartedAt, r.CompletedAt, r.LockedAt)
	if err != nil {
		return fmt.Errorf("inserting set record: %w", err)
	}
	return nil
}

// QuerySetRecords retrieves a user's sets for one exercise, newest first.
func (s *Store) QuerySetRecords(ctx context.Context, userID int, exerciseID string, limit int) ([]models.SetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, exercise_id, set_index, reps, weight_kg,
		 tempo_score, smoothness, consistency, feedback, strain_modifier,
		 user_intensity, trainer_intensity, estimated, started_at, completed_at, locked_at
		 FROM set_records
		 WHERE user_id = ? AND exercise_id = ?
		 ORDER BY completed_at DESC LIMIT ?`,
		userID, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying set records: %w", err)
	}
	defer rows.Close()
	return scanSetRecords(rows)
}

// UnsyncedSetRecords returns locked rows that have not yet reached the sync
// server.
func (s *Store) UnsyncedSetRecords(ctx context.Context, limit int) ([]models.SetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, exercise_id, set_index, reps, weight_kg,
		 tempo_score, smoothness, consistency, feedback, strain_modifier,
		 user_intensity, trainer_intensity, estimated, started_at, completed_at, locked_at
		 FROM set_records
		 WHERE synced = 0
		 ORDER BY completed_at ASC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying unsynced set records: %w", err)
	}
	defer rows.Close()
	return scanSetRecords(rows)
}

// MarkSetSynced flags a record after a successful upload.
func (s *Store) MarkSetSynced(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE set_records SET synced = 1 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("marking set synced: %w", err)
	}
	return nil
}

func scanSetRecords(rows *sql.Rows) ([]models.SetRecord, error) {
	var result []models.SetRecord
	for rows.Next() {
		var (
			r        models.SetRecord
			id, sess string
			feedback string
		)
		if err := rows.Scan(&id, &sess, &r.UserID, &r.ExerciseID, &r.SetIndex,
			&r.Reps, &r.WeightKg, &r.TempoScore, &r.Smoothness, &r.Consistency,
			&feedback, &r.StrainModifier, &r.UserIntensity, &r.TrainerIntensity,
			&r.Estimated, &r.StartedAt, &r.CompletedAt, &r.LockedAt); err != nil {
			return nil, fmt.Errorf("scanning set record: %w", err)
		}
		var err error
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing set id: %w", err)
		}
		if r.SessionID, err = uuid.Parse(sess); err != nil {
			return nil, fmt.Errorf("parsing session id: %w", err)
		}
		r.Feedback = models.Feedback(feedback)
		result = append(result, r)
	}
	return result, rows.Err()
}

// SessionIntensities returns the user intensities of a session in set order.
func (s *Store) SessionIntensities(ctx context.Context, sessionID uuid.UUID) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_intensity FROM set_records WHERE session_id = ? ORDER BY set_index ASC`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("querying session intensities: %w", err)
	}
	defer rows.Close()

	var result []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning intensity: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// WeeklyBestIntensity returns the best trainer intensity per ISO week for
// one exercise, oldest week first. Used by the plateau detector.
func (s *Store) WeeklyBestIntensity(ctx context.Context, userID int, exerciseID string, since time.Time) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT MAX(trainer_intensity)
		 FROM set_records
		 WHERE user_id = ? AND exercise_id = ? AND completed_at >= ?
		 GROUP BY strftime('%Y-%W', completed_at)
		 ORDER BY strftime('%Y-%W', completed_at) ASC`,
		userID, exerciseID, since)
	if err != nil {
		return nil, fmt.Errorf("querying weekly best: %w", err)
	}
	defer rows.Close()

	var result []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning weekly best: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}
