package mcp

import (
	"context"
	"time"

	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/syncstore"
)

// DataSource abstracts the data layer for MCP tools. Both *syncstore.DB
// (local) and HTTPClient (remote via the sync server REST API) satisfy it.
type DataSource interface {
	QuerySetRecords(ctx context.Context, userID int, exerciseFilter string, start, end time.Time, limit int) ([]models.SetRecord, error)
	GetIntensitySummary(ctx context.Context, start, end time.Time, userID int, exerciseFilter string) (*syncstore.IntensitySummaryResult, error)
	LatestCalibrationState(ctx context.Context, userID int, exerciseID string) (*models.CalibrationState, error)
	GetPRPrediction(ctx context.Context, now time.Time, userID int, exerciseID string) (*syncstore.PRPrediction, error)
	LatestSession(ctx context.Context, userID int) ([]models.SetRecord, error)
}

// Compile-time check: *syncstore.DB satisfies DataSource.
var _ DataSource = (*syncstore.DB)(nil)
