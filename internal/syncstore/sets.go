package syncstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/setforge/internal/models"
)

// InsertSetRecords batch-inserts uploaded set records. Re-uploads of the
// same record are ignored, so device retries are safe. Returns count
// inserted.
func (db *DB) InsertSetRecords(ctx context.Context, recs []models.SetRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	query := `INSERT INTO set_records (id, session_id, user_id, exercise_id, set_index,
		reps, weight_kg, tempo_score, motion_smoothness, rep_consistency, feedback,
		strain_modifier, user_intensity, trainer_intensity, estimated,
		started_at, completed_at, locked_at) VALUES `
	args := make([]any, 0, len(recs)*18)
	valueStrings := make([]string, 0, len(recs))

	for i, r := range recs {
		base := i * 18
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
			base+10, base+11, base+12, base+13, base+14, base+15, base+16, base+17, base+18,
		))
		args = append(args, r.ID, r.SessionID, r.UserID, r.ExerciseID, r.SetIndex,
			r.Reps, r.WeightKg, r.TempoScore, r.Smoothness, r.Consistency, string(r.Feedback),
			r.StrainModifier, r.UserIntensity, r.TrainerIntensity, r.Estimated,
			r.StartedAt, r.CompletedAt, r.LockedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting set records: %w", err)
	}
	return tag.RowsAffected(), nil
}

const setRecordColumns = `id, session_id, user_id, exercise_id, set_index,
	reps, weight_kg, tempo_score, motion_smoothness, rep_consistency, feedback,
	strain_modifier, user_intensity, trainer_intensity, estimated,
	started_at, completed_at, locked_at`

// QuerySetRecords retrieves set records in a date range, newest first.
// exerciseFilter is a partial match; empty means all exercises.
func (db *DB) QuerySetRecords(ctx context.Context, userID int, exerciseFilter string, start, end time.Time, limit int) ([]models.SetRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT `+setRecordColumns+`
		 FROM set_records
		 WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3
		   AND ($4 = '' OR exercise_id ILIKE '%' || $4 || '%')
		 ORDER BY completed_at DESC, set_index DESC
		 LIMIT $5`,
		userID, start, end, exerciseFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("querying set records: %w", err)
	}
	defer rows.Close()
	return scanSetRecords(rows)
}

// LatestSession returns all sets of the user's most recent session, in set
// order. Empty when the user has no uploaded sets.
func (db *DB) LatestSession(ctx context.Context, userID int) ([]models.SetRecord, error) {
	var sessionID uuid.UUID
	err := db.Pool.QueryRow(ctx,
		`SELECT session_id FROM set_records
		 WHERE user_id = $1
		 ORDER BY completed_at DESC LIMIT 1`, userID).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding latest session: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT `+setRecordColumns+`
		 FROM set_records
		 WHERE session_id = $1
		 ORDER BY set_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying latest session: %w", err)
	}
	defer rows.Close()
	return scanSetRecords(rows)
}

func scanSetRecords(rows pgx.Rows) ([]models.SetRecord, error) {
	var result []models.SetRecord
	for rows.Next() {
		var (
			r        models.SetRecord
			feedback string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.ExerciseID, &r.SetIndex,
			&r.Reps, &r.WeightKg, &r.TempoScore, &r.Smoothness, &r.Consistency, &feedback,
			&r.StrainModifier, &r.UserIntensity, &r.TrainerIntensity, &r.Estimated,
			&r.StartedAt, &r.CompletedAt, &r.LockedAt); err != nil {
			return nil, fmt.Errorf("scanning set record: %w", err)
		}
		r.Feedback = models.Feedback(feedback)
		result = append(result, r)
	}
	return result, rows.Err()
}
