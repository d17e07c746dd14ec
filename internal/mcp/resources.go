package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

var resLatestSession = mcp.NewResource(
	"setforge://latest_session",
	"Latest workout session",
	mcp.WithResourceDescription("All locked set records of the user's most recent workout session, in set order."),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) latestSession(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)

	recs, err := h.ds.LatestSession(ctx, uid)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]any{
		"sets":  recs,
		"count": len(recs),
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
