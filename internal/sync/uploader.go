// Package sync uploads locked set records and hashed supplement entries to
// the sync server. Every outbound payload passes the privacy gate first; a
// policy violation permanently abandons the item.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meltforce/setforge/internal/privacy"
	"github.com/meltforce/setforge/internal/store"
)

const uploadBatch = 50

// Client sends payloads to the sync server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an HTTP client for the sync server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// post marshals v through the privacy gate and POSTs it. Retries up to 3
// times with exponential backoff on transport failures; policy violations
// are returned immediately and never retried.
func (c *Client) post(ctx context.Context, path string, v any) error {
	data, err := privacy.Marshal(v)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(1<<uint(attempt-2)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, body)
	}
	return fmt.Errorf("after 3 attempts: %w", lastErr)
}

// Uploader drains the store's unsynced queues on an interval.
type Uploader struct {
	db     *store.Store
	client *Client
	log    *slog.Logger
}

// NewUploader wires the background sync loop.
func NewUploader(db *store.Store, client *Client, log *slog.Logger) *Uploader {
	return &Uploader{db: db, client: client, log: log}
}

// Run uploads pending items every interval until ctx is cancelled.
func (u *Uploader) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.SyncOnce(ctx); err != nil {
				u.log.Error("sync pass failed", "error", err)
			}
		}
	}
}

// SyncOnce uploads one batch of pending set records and supplement hashes,
// then re-uploads the current calibration snapshots.
func (u *Uploader) SyncOnce(ctx context.Context) error {
	if err := u.syncSets(ctx); err != nil {
		return err
	}
	if err := u.syncSupplements(ctx); err != nil {
		return err
	}
	return u.syncCalibration(ctx)
}

func (u *Uploader) syncSets(ctx context.Context) error {
	recs, err := u.db.UnsyncedSetRecords(ctx, uploadBatch)
	if err != nil {
		return fmt.Errorf("loading unsynced sets: %w", err)
	}
	for _, rec := range recs {
		if err := u.client.post(ctx, "/api/v1/sets", rec); err != nil {
			if errors.Is(err, privacy.ErrPolicyViolation) {
				// Permanent: mark it so the queue does not wedge.
				u.log.Error("set record refused by privacy gate", "id", rec.ID, "error", err)
				if err := u.db.MarkSetSynced(ctx, rec.ID); err != nil {
					return fmt.Errorf("abandoning refused record: %w", err)
				}
				continue
			}
			return fmt.Errorf("uploading set %s: %w", rec.ID, err)
		}
		if err := u.db.MarkSetSynced(ctx, rec.ID); err != nil {
			return fmt.Errorf("marking set synced: %w", err)
		}
		u.log.Info("set synced", "id", rec.ID, "set", rec.SetIndex)
	}
	return nil
}

func (u *Uploader) syncSupplements(ctx context.Context) error {
	entries, err := u.db.UnsyncedSupplements(ctx, uploadBatch)
	if err != nil {
		return fmt.Errorf("loading unsynced supplements: %w", err)
	}
	for _, e := range entries {
		out, err := privacy.Redact(e)
		if err != nil {
			u.log.Error("supplement refused by privacy gate", "id", e.ID, "error", err)
			if err := u.db.MarkSupplementSynced(ctx, e.ID); err != nil {
				return fmt.Errorf("abandoning refused supplement: %w", err)
			}
			continue
		}
		if err := u.client.post(ctx, "/api/v1/supplements", out); err != nil {
			return fmt.Errorf("uploading supplement %s: %w", e.ID, err)
		}
		if err := u.db.MarkSupplementSynced(ctx, e.ID); err != nil {
			return fmt.Errorf("marking supplement synced: %w", err)
		}
	}
	return nil
}

// syncCalibration pushes the latest snapshot per exercise. The server
// upserts, so re-sending unchanged state is harmless.
func (u *Uploader) syncCalibration(ctx context.Context) error {
	states, err := u.db.LatestCalibrationStates(ctx)
	if err != nil {
		return fmt.Errorf("loading calibration states: %w", err)
	}
	for _, st := range states {
		if err := u.client.post(ctx, "/api/v1/calibration", st); err != nil {
			return fmt.Errorf("uploading calibration %s: %w", st.ExerciseID, err)
		}
	}
	return nil
}
