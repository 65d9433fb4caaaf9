// Package mcpserver exposes the coordination core over MCP so agent
// tooling can ask the same questions the hook and the CLI answer. This
// is wiring only; the decisions come from the guard and the event log.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/wucoord/wu/internal/config"
	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/guard"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the resolved dependencies the tools need.
type Deps struct {
	RepoRoot string
	Config   config.Config
	Log      *eventlog.Log
	Layout   guard.Layout

	// Branch reports the current branch of the main checkout. Like the
	// subprocess hook, the check-write tool consults it best-effort; nil
	// leaves the decision branch-blind.
	Branch func(ctx context.Context) (string, error)
}

// New creates the MCP server with the coordination tools registered.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"wu",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	check := &checkWriteTool{deps: deps}
	s.AddTool(check.definition(), check.handle)

	status := &statusTool{deps: deps}
	s.AddTool(status.definition(), status.handle)

	return s
}

// ServeStdio runs the server on stdin/stdout until the client hangs up.
func ServeStdio(deps Deps) error {
	return server.ServeStdio(New(deps))
}

const instructions = `Work unit coordination tools.

Use coordination_check_write before writing files in this repository to
learn whether the write is allowed from the current location, and
coordination_status to inspect work unit state. Writes to coordinated
paths are only allowed from inside a claim workspace; claim a unit with
'wu claim' first.`
