package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
)

// InsertRestPeriod persists the outcome of one rest countdown.
func (s *Store) InsertRestPeriod(ctx context.Context, rp models.RestPeriod) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rest_periods (set_id, planned_ns, actual_ns, auto_extended,
		 suppressed_life_pause, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rp.SetID.String(), int64(rp.PlannedDuration), int64(rp.ActualDuration),
		rp.AutoExtended, rp.SuppressedLifePause, rp.StartedAt, rp.EndedAt)
	if err != nil {
		return fmt.Errorf("inserting rest period: %w", err)
	}
	return nil
}

// RestPeriodForSet returns the rest taken after one set, if recorded.
func (s *Store) RestPeriodForSet(ctx context.Context, setID uuid.UUID) (*models.RestPeriod, error) {
	var (
		rp                  models.RestPeriod
		id                  string
		plannedNS, actualNS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT set_id, planned_ns, actual_ns, auto_extended, suppressed_life_pause,
		 started_at, ended_at FROM rest_periods WHERE set_id = ?`,
		setID.String()).Scan(&id, &plannedNS, &actualNS, &rp.AutoExtended,
		&rp.SuppressedLifePause, &rp.StartedAt, &rp.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("querying rest period: %w", err)
	}
	if rp.SetID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing set id: %w", err)
	}
	rp.PlannedDuration = time.Duration(plannedNS)
	rp.ActualDuration = time.Duration(actualNS)
	return &rp, nil
}

// InsertForgottenSetEvent records one watchdog trigger and its resolution.
func (s *Store) InsertForgottenSetEvent(ctx context.Context, ev models.ForgottenSetEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO forgotten_set_events (id, session_id, triggered_at,
		 strain_delta, erraticism, response, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.SessionID.String(), ev.TriggeredAt,
		ev.StrainDelta, ev.Erraticism, string(ev.Response), ev.Action)
	if err != nil {
		return fmt.Errorf("inserting forgotten-set event: %w", err)
	}
	return nil
}

// ForgottenSetEvents lists a session's watchdog events in trigger order.
func (s *Store) ForgottenSetEvents(ctx context.Context, sessionID uuid.UUID) ([]models.ForgottenSetEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, triggered_at, strain_delta, erraticism, response, action
		 FROM forgotten_set_events WHERE session_id = ? ORDER BY triggered_at ASC`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("querying forgotten-set events: %w", err)
	}
	defer rows.Close()

	var result []models.ForgottenSetEvent
	for rows.Next() {
		var (
			ev       models.ForgottenSetEvent
			id, sess string
			resp     string
		)
		if err := rows.Scan(&id, &sess, &ev.TriggeredAt, &ev.StrainDelta,
			&ev.Erraticism, &resp, &ev.Action); err != nil {
			return nil, fmt.Errorf("scanning forgotten-set event: %w", err)
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing event id: %w", err)
		}
		if ev.SessionID, err = uuid.Parse(sess); err != nil {
			return nil, fmt.Errorf("parsing session id: %w", err)
		}
		ev.Response = models.PromptResponse(resp)
		result = append(result, ev)
	}
	return result, rows.Err()
}
