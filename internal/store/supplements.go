package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/privacy"
)

// InsertSupplement stores a supplement entry with its public hash
// precomputed. The full text stays in this table only.
func (s *Store) InsertSupplement(ctx context.Context, e models.SupplementEntry) error {
	if e.PublicHash == "" {
		e.PublicHash = privacy.HashPublic(e.Text)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supplement_entries (id, user_id, full_text, public_hash, rx, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID, e.Text, e.PublicHash, e.Rx, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting supplement: %w", err)
	}
	return nil
}

// UnsyncedSupplements returns non-Rx entries pending upload. Rx entries are
// excluded at the query level; the privacy gate would refuse them anyway.
func (s *Store) UnsyncedSupplements(ctx context.Context, limit int) ([]models.SupplementEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, full_text, public_hash, rx, created_at
		 FROM supplement_entries
		 WHERE synced = 0 AND rx = 0
		 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unsynced supplements: %w", err)
	}
	defer rows.Close()

	var result []models.SupplementEntry
	for rows.Next() {
		var (
			e  models.SupplementEntry
			id string
		)
		if err := rows.Scan(&id, &e.UserID, &e.Text, &e.PublicHash, &e.Rx, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning supplement: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing supplement id: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// MarkSupplementSynced flags an entry after its hash reached the server.
func (s *Store) MarkSupplementSynced(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE supplement_entries SET synced = 1 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("marking supplement synced: %w", err)
	}
	return nil
}

// WipeExpiredSupplements clears the full text of entries older than the
// retention window, keeping the hash and metadata. No-op when the user has
// opted out of the auto-wipe.
func (s *Store) WipeExpiredSupplements(ctx context.Context, now time.Time, optOut bool) (int64, error) {
	if optOut {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE supplement_entries SET full_text = ''
		 WHERE created_at < ? AND full_text != ''`,
		privacy.RetentionCutoff(now))
	if err != nil {
		return 0, fmt.Errorf("wiping expired supplements: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting wiped supplements: %w", err)
	}
	return n, nil
}
