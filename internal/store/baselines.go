package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meltforce/setforge/internal/strain"
)

// SaveBaseline upserts a user's physiological baseline.
func (s *Store) SaveBaseline(ctx context.Context, userID int, b strain.Baseline) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO baselines (user_id, resting_hr, max_hr, resting_spo2, recovery_half_life)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		 resting_hr = excluded.resting_hr,
		 max_hr = excluded.max_hr,
		 resting_spo2 = excluded.resting_spo2,
		 recovery_half_life = excluded.recovery_half_life`,
		userID, b.RestingHR, b.MaxHR, b.RestingSpO2, int64(b.RecoveryHalfLife))
	if err != nil {
		return fmt.Errorf("saving baseline: %w", err)
	}
	return nil
}

// Baseline loads a user's baseline, falling back to population defaults
// when none has been calibrated yet.
func (s *Store) Baseline(ctx context.Context, userID int) (strain.Baseline, error) {
	var (
		b      strain.Baseline
		halfNS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT resting_hr, max_hr, resting_spo2, recovery_half_life
		 FROM baselines WHERE user_id = ?`, userID).
		Scan(&b.RestingHR, &b.MaxHR, &b.RestingSpO2, &halfNS)
	if errors.Is(err, sql.ErrNoRows) {
		return strain.DefaultBaseline(), nil
	}
	if err != nil {
		return strain.Baseline{}, fmt.Errorf("querying baseline: %w", err)
	}
	b.RecoveryHalfLife = time.Duration(halfNS)
	return b, nil
}
