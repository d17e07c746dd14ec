// Command setforge-mcp exposes intensity history, calibration snapshots and
// the PR prediction to trainer tooling over MCP stdio, backed by a running
// sync server.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/setforge/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "sync server base URL (default $SETFORGE_SYNC_URL)")
	flag.Parse()

	// Logs go to stderr: stdout is the MCP transport.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	url := *serverURL
	if url == "" {
		url = os.Getenv("SETFORGE_SYNC_URL")
	}
	if url == "" {
		log.Error("sync server URL required: pass -server or set SETFORGE_SYNC_URL")
		os.Exit(1)
	}

	ds := mcp.NewHTTPClient(url)
	srv := mcp.New(ds, Version, log)
	log.Info("SetForge MCP server starting", "version", Version, "sync_server", url)

	if err := server.ServeStdio(srv); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
