package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetSetHistory = mcp.NewTool("get_set_history",
	mcp.WithDescription("Query per-set workout records: reps, weight, tempo and form scores, strain modifier, and the final intensity (user view capped at 100, trainer view uncapped)."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise ID (partial match, e.g. 'bench')")),
	mcp.WithNumber("limit", mcp.Description("Maximum records to return. Defaults to 200.")),
)

var toolGetIntensitySummary = mcp.NewTool("get_intensity_summary",
	mcp.WithDescription("Intensity distribution, per-exercise tonnage and averages, and week-by-week progression when an exercise filter is set. Weekly progression uses the uncapped trainer intensity so plateaus stay visible."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise ID (partial match). When set, includes weekly progression.")),
)

var toolGetCalibrationState = mcp.NewTool("get_calibration_state",
	mcp.WithDescription("Latest calibration controller state for an exercise: mode, current and last-stable training parameters, target intensity, strain ceiling, 1RM estimate and review flag."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise ID (e.g. bench_press)")),
)

var toolGetPRPrediction = mcp.NewTool("get_pr_prediction",
	mcp.WithDescription("PR attempt readiness for an exercise: the recorded 1RM, the current estimate from stable parameters, when the last prediction was issued, and whether a fresh one may be."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise ID (e.g. bench_press)")),
)

// --- Tool handlers ---

func (h *handlers) getSetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	limit := req.GetInt("limit", 200)
	uid := UserIDFromContext(ctx)

	recs, err := h.ds.QuerySetRecords(ctx, uid, req.GetString("exercise", ""), start, end, limit)
	if err != nil {
		h.log.Error("mcp get_set_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(recs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getIntensitySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endStr := req.GetString("end", "")
	startStr := req.GetString("start", "")

	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return mcp.NewToolResultError("invalid end date: " + err.Error()), nil
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return mcp.NewToolResultError("invalid start date: " + err.Error()), nil
		}
	} else {
		start = end.AddDate(0, 0, -90)
	}

	uid := UserIDFromContext(ctx)

	summary, err := h.ds.GetIntensitySummary(ctx, start, end, uid, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_intensity_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCalibrationState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)

	st, err := h.ds.LatestCalibrationState(ctx, uid, exercise)
	if err != nil {
		h.log.Error("mcp get_calibration_state", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if st == nil {
		return mcp.NewToolResultError("no calibration state synced for " + exercise), nil
	}

	result, err := mcp.NewToolResultJSON(st)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPRPrediction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)

	p, err := h.ds.GetPRPrediction(ctx, time.Now(), uid, exercise)
	if err != nil {
		h.log.Error("mcp get_pr_prediction", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if p == nil {
		return mcp.NewToolResultError("no calibration state synced for " + exercise), nil
	}

	result, err := mcp.NewToolResultJSON(p)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
