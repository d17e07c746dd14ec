package syncstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meltforce/setforge/internal/calibration"
	"github.com/meltforce/setforge/internal/models"
)

// UpsertCalibrationState stores a calibration snapshot uploaded by a device.
// Devices re-upload the latest state every sync pass, so the upsert is
// last-writer-wins per (user, exercise, week).
func (db *DB) UpsertCalibrationState(ctx context.Context, st models.CalibrationState) error {
	var predictedAt *time.Time
	if !st.PRPredictedAt.IsZero() {
		predictedAt = &st.PRPredictedAt
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO calibration_states (user_id, exercise_id, week, mode,
			sets, reps, volume_kg, tempo_sec,
			stable_sets, stable_reps, stable_volume_kg, stable_tempo_sec,
			target_intensity, strain_ceiling, last_delta, one_rep_max_kg,
			needs_review, pr_predicted_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		 ON CONFLICT (user_id, exercise_id, week) DO UPDATE SET
			mode = excluded.mode,
			sets = excluded.sets, reps = excluded.reps,
			volume_kg = excluded.volume_kg, tempo_sec = excluded.tempo_sec,
			stable_sets = excluded.stable_sets, stable_reps = excluded.stable_reps,
			stable_volume_kg = excluded.stable_volume_kg, stable_tempo_sec = excluded.stable_tempo_sec,
			target_intensity = excluded.target_intensity, strain_ceiling = excluded.strain_ceiling,
			last_delta = excluded.last_delta, one_rep_max_kg = excluded.one_rep_max_kg,
			needs_review = excluded.needs_review, pr_predicted_at = excluded.pr_predicted_at,
			updated_at = excluded.updated_at`,
		st.UserID, st.ExerciseID, st.Week, string(st.Mode),
		st.Params.Sets, st.Params.Reps, st.Params.VolumeKg, st.Params.TempoSec,
		st.LastStable.Sets, st.LastStable.Reps, st.LastStable.VolumeKg, st.LastStable.TempoSec,
		st.TargetIntensity, st.StrainCeiling, st.LastDelta, st.OneRepMaxKg,
		st.NeedsReview, predictedAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting calibration state: %w", err)
	}
	return nil
}

// LatestCalibrationState returns the newest uploaded state for an exercise,
// or nil when the device has not synced one yet.
func (db *DB) LatestCalibrationState(ctx context.Context, userID int, exerciseID string) (*models.CalibrationState, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT user_id, exercise_id, week, mode,
			sets, reps, volume_kg, tempo_sec,
			stable_sets, stable_reps, stable_volume_kg, stable_tempo_sec,
			target_intensity, strain_ceiling, last_delta, one_rep_max_kg,
			needs_review, pr_predicted_at, updated_at
		 FROM calibration_states
		 WHERE user_id = $1 AND exercise_id = $2
		 ORDER BY week DESC LIMIT 1`, userID, exerciseID)

	var (
		st          models.CalibrationState
		mode        string
		predictedAt *time.Time
	)
	err := row.Scan(&st.UserID, &st.ExerciseID, &st.Week, &mode,
		&st.Params.Sets, &st.Params.Reps, &st.Params.VolumeKg, &st.Params.TempoSec,
		&st.LastStable.Sets, &st.LastStable.Reps, &st.LastStable.VolumeKg, &st.LastStable.TempoSec,
		&st.TargetIntensity, &st.StrainCeiling, &st.LastDelta, &st.OneRepMaxKg,
		&st.NeedsReview, &predictedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading calibration state: %w", err)
	}
	st.Mode = models.CalibrationMode(mode)
	if predictedAt != nil {
		st.PRPredictedAt = *predictedAt
	}
	return &st, nil
}

// PRPrediction is the trainer-facing readiness report for a PR attempt.
type PRPrediction struct {
	ExerciseID    string    `json:"exercise_id"`
	OneRepMaxKg   float64   `json:"one_rep_max_kg"`
	EstimateKg    float64   `json:"estimate_kg"`
	PredictedAt   time.Time `json:"predicted_at,omitzero"`
	NextAllowedAt time.Time `json:"next_allowed_at,omitzero"`
	Ready         bool      `json:"ready"`
}

// GetPRPrediction reports the latest predicted 1RM for an exercise and
// whether a fresh prediction may be issued. Nil when no calibration state
// was synced.
func (db *DB) GetPRPrediction(ctx context.Context, now time.Time, userID int, exerciseID string) (*PRPrediction, error) {
	st, err := db.LatestCalibrationState(ctx, userID, exerciseID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}

	p := &PRPrediction{
		ExerciseID:    st.ExerciseID,
		OneRepMaxKg:   st.OneRepMaxKg,
		EstimateKg:    calibration.EstimateOneRepMax(st.Params.VolumeKg, st.Params.Reps),
		PredictedAt:   st.PRPredictedAt,
		NextAllowedAt: calibration.NextPredictionAllowed(st.PRPredictedAt),
	}
	p.Ready = p.NextAllowedAt.IsZero() || !now.Before(p.NextAllowedAt)
	return p, nil
}
