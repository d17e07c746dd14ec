package syncstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meltforce/setforge/internal/privacy"
)

// InsertSupplementHashes stores uploaded supplement hashes. The server
// only ever sees the hashed form; duplicates from device retries are
// ignored.
func (db *DB) InsertSupplementHashes(ctx context.Context, entries []privacy.OutboundSupplement) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	query := `INSERT INTO supplement_hashes (user_id, public_hash, created_at) VALUES `
	args := make([]any, 0, len(entries)*3)
	valueStrings := make([]string, 0, len(entries))

	for i, e := range entries {
		base := i * 3
		valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d)", base+1, base+2, base+3))
		args = append(args, e.UserID, e.PublicHash, e.CreatedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting supplement hashes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QuerySupplementHashes retrieves hashes logged in a date range, newest
// first.
func (db *DB) QuerySupplementHashes(ctx context.Context, userID int, start, end time.Time) ([]privacy.OutboundSupplement, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT user_id, public_hash, created_at
		 FROM supplement_hashes
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying supplement hashes: %w", err)
	}
	defer rows.Close()

	var result []privacy.OutboundSupplement
	for rows.Next() {
		var e privacy.OutboundSupplement
		if err := rows.Scan(&e.UserID, &e.PublicHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning supplement hash: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
