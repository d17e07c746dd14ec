package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/meltforce/setforge/internal/models"
)

// SaveCalibrationState upserts the controller state for one
// (user, exercise, week).
func (s *Store) SaveCalibrationState(ctx context.Context, st models.CalibrationState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calibration_states (user_id, exercise_id, week, mode,
		 sets, reps, volume_kg, tempo_sec,
		 stable_sets, stable_reps, stable_volume_kg, stable_tempo_sec,
		 target_intensity, strain_ceiling, last_delta, one_rep_max_kg,
		 needs_review, pr_predicted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, exercise_id, week) DO UPDATE SET
		 mode = excluded.mode,
		 sets = excluded.sets, reps = excluded.reps,
		 volume_kg = excluded.volume_kg, tempo_sec = excluded.tempo_sec,
		 stable_sets = excluded.stable_sets, stable_reps = excluded.stable_reps,
		 stable_volume_kg = excluded.stable_volume_kg,
		 stable_tempo_sec = excluded.stable_tempo_sec,
		 target_intensity = excluded.target_intensity,
		 strain_ceiling = excluded.strain_ceiling,
		 last_delta = excluded.last_delta,
		 one_rep_max_kg = excluded.one_rep_max_kg,
		 needs_review = excluded.needs_review,
		 pr_predicted_at = excluded.pr_predicted_at,
		 updated_at = excluded.updated_at`,
		st.UserID, st.ExerciseID, st.Week, string(st.Mode),
		st.Params.Sets, st.Params.Reps, st.Params.VolumeKg, st.Params.TempoSec,
		st.LastStable.Sets, st.LastStable.Reps, st.LastStable.VolumeKg, st.LastStable.TempoSec,
		st.TargetIntensity, st.StrainCeiling, st.LastDelta, st.OneRepMaxKg,
		st.NeedsReview, st.PRPredictedAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving calibration state: %w", err)
	}
	return nil
}

// CalibrationState loads the state for one (user, exercise, week). Returns
// nil without error when no row exists.
func (s *Store) CalibrationState(ctx context.Context, userID int, exerciseID string, week int) (*models.CalibrationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, exercise_id, week, mode,
		 sets, reps, volume_kg, tempo_sec,
		 stable_sets, stable_reps, stable_volume_kg, stable_tempo_sec,
		 target_intensity, strain_ceiling, last_delta, one_rep_max_kg,
		 needs_review, pr_predicted_at, updated_at
		 FROM calibration_states
		 WHERE user_id = ? AND exercise_id = ? AND week = ?`,
		userID, exerciseID, week)
	return scanCalibrationState(row)
}

// LatestCalibrationState loads the most recent week's state for an exercise.
func (s *Store) LatestCalibrationState(ctx context.Context, userID int, exerciseID string) (*models.CalibrationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, exercise_id, week, mode,
		 sets, reps, volume_kg, tempo_sec,
		 stable_sets, stable_reps, stable_volume_kg, stable_tempo_sec,
		 target_intensity, strain_ceiling, last_delta, one_rep_max_kg,
		 needs_review, pr_predicted_at, updated_at
		 FROM calibration_states
		 WHERE user_id = ? AND exercise_id = ?
		 ORDER BY week DESC LIMIT 1`,
		userID, exerciseID)
	return scanCalibrationState(row)
}

// LatestCalibrationStates loads the newest week's state for every
// (user, exercise) pair. The sync loop re-uploads these each pass.
func (s *Store) LatestCalibrationStates(ctx context.Context) ([]models.CalibrationState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, exercise_id, week, mode,
		 sets, reps, volume_kg, tempo_sec,
		 stable_sets, stable_reps, stable_volume_kg, stable_tempo_sec,
		 target_intensity, strain_ceiling, last_delta, one_rep_max_kg,
		 needs_review, pr_predicted_at, updated_at
		 FROM calibration_states c
		 WHERE week = (SELECT MAX(week) FROM calibration_states
		               WHERE user_id = c.user_id AND exercise_id = c.exercise_id)
		 ORDER BY user_id, exercise_id`)
	if err != nil {
		return nil, fmt.Errorf("querying latest calibration states: %w", err)
	}
	defer rows.Close()

	var result []models.CalibrationState
	for rows.Next() {
		var (
			st   models.CalibrationState
			mode string
			pred sql.NullTime
		)
		if err := rows.Scan(&st.UserID, &st.ExerciseID, &st.Week, &mode,
			&st.Params.Sets, &st.Params.Reps, &st.Params.VolumeKg, &st.Params.TempoSec,
			&st.LastStable.Sets, &st.LastStable.Reps, &st.LastStable.VolumeKg, &st.LastStable.TempoSec,
			&st.TargetIntensity, &st.StrainCeiling, &st.LastDelta, &st.OneRepMaxKg,
			&st.NeedsReview, &pred, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning calibration state: %w", err)
		}
		st.Mode = models.CalibrationMode(mode)
		if pred.Valid {
			st.PRPredictedAt = pred.Time
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func scanCalibrationState(row *sql.Row) (*models.CalibrationState, error) {
	var (
		st   models.CalibrationState
		mode string
		pred sql.NullTime
	)
	err := row.Scan(&st.UserID, &st.ExerciseID, &st.Week, &mode,
		&st.Params.Sets, &st.Params.Reps, &st.Params.VolumeKg, &st.Params.TempoSec,
		&st.LastStable.Sets, &st.LastStable.Reps, &st.LastStable.VolumeKg, &st.LastStable.TempoSec,
		&st.TargetIntensity, &st.StrainCeiling, &st.LastDelta, &st.OneRepMaxKg,
		&st.NeedsReview, &pred, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning calibration state: %w", err)
	}
	st.Mode = models.CalibrationMode(mode)
	if pred.Valid {
		st.PRPredictedAt = pred.Time
	}
	return &st, nil
}
