package internal

import (
	"fmt"
	"os"

	"github.com/starford/waypoint/internal/mcpserver"
	"github.com/starford/waypoint/internal/tripservice"
)

// ServeMCP runs the MCP stdio server on the configured data directory.
// Logs go to stderr because stdout carries the protocol. Edits are indexed
// here, so a server sharing the same database does not announce them to its
// rooms; its clients see them on their next reload.
func ServeMCP(version string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	store, db, err := openBackend(app.config, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := tripservice.NewService(store, db, tripservice.WithLogger(logger))
	if err := mcpserver.New(svc, version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
