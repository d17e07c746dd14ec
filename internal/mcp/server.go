// Package mcp exposes workout intensity data to model-driven assistants.
// Tools read from a DataSource, which is either the sync server's database
// (server-side) or its REST API (local stdio binary over Tailscale).
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Setforge", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Setforge workout data server. Query per-set intensity history, intensity summaries, calibration state and PR predictions. Athlete-facing intensity is capped at 100; trainer fields carry the uncapped value. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetSetHistory, Handler: h.getSetHistory},
		server.ServerTool{Tool: toolGetIntensitySummary, Handler: h.getIntensitySummary},
		server.ServerTool{Tool: toolGetCalibrationState, Handler: h.getCalibrationState},
		server.ServerTool{Tool: toolGetPRPrediction, Handler: h.getPRPrediction},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resLatestSession, Handler: h.latestSession},
	)

	return s
}

type handlers struct {
	ds  DataSource
	log *slog.Logger
}
