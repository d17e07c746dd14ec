package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/syncstore"
)

// HTTPClient implements DataSource by calling the sync server REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but data
// lives on the sync server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func rangeParams(start, end time.Time, userID int) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	v.Set("user", strconv.Itoa(userID))
	return v
}

func (c *HTTPClient) QuerySetRecords(ctx context.Context, userID int, exerciseFilter string, start, end time.Time, limit int) ([]models.SetRecord, error) {
	params := rangeParams(start, end, userID)
	if exerciseFilter != "" {
		params.Set("exercise", exerciseFilter)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v1/sets", params)
	if err != nil {
		return nil, err
	}

	var recs []models.SetRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("httpclient: decode set records: %w", err)
	}
	return recs, nil
}

func (c *HTTPClient) GetIntensitySummary(ctx context.Context, start, end time.Time, userID int, exerciseFilter string) (*syncstore.IntensitySummaryResult, error) {
	params := rangeParams(start, end, userID)
	if exerciseFilter != "" {
		params.Set("exercise", exerciseFilter)
	}

	body, err := c.get(ctx, "/api/v1/summary/intensity", params)
	if err != nil {
		return nil, err
	}

	var result syncstore.IntensitySummaryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("httpclient: decode intensity summary: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) LatestCalibrationState(ctx context.Context, userID int, exerciseID string) (*models.CalibrationState, error) {
	params := url.Values{}
	params.Set("user", strconv.Itoa(userID))
	params.Set("exercise", exerciseID)

	body, err := c.get(ctx, "/api/v1/calibration", params)
	if err != nil {
		return nil, err
	}

	var st models.CalibrationState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("httpclient: decode calibration state: %w", err)
	}
	return &st, nil
}

func (c *HTTPClient) GetPRPrediction(ctx context.Context, _ time.Time, userID int, exerciseID string) (*syncstore.PRPrediction, error) {
	params := url.Values{}
	params.Set("user", strconv.Itoa(userID))
	params.Set("exercise", exerciseID)

	body, err := c.get(ctx, "/api/v1/prediction", params)
	if err != nil {
		return nil, err
	}

	var p syncstore.PRPrediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("httpclient: decode prediction: %w", err)
	}
	return &p, nil
}

func (c *HTTPClient) LatestSession(ctx context.Context, userID int) ([]models.SetRecord, error) {
	params := url.Values{}
	params.Set("user", strconv.Itoa(userID))

	body, err := c.get(ctx, "/api/v1/sessions/latest", params)
	if err != nil {
		return nil, err
	}

	var recs []models.SetRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("httpclient: decode latest session: %w", err)
	}
	return recs, nil
}
