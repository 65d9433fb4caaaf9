package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/guard"
	"github.com/wucoord/wu/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve coordination tools over MCP on stdio",
	Long: `Serve the coordination tools over MCP on stdin/stdout:

  coordination_check_write - the write-enforcement decision
  coordination_status      - derived work unit state

Register the binary as an MCP server:
  {"mcpServers": {"wu": {"command": "wu", "args": ["mcp", "serve"]}}}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}

		deps := mcpserver.Deps{
			RepoRoot: a.root,
			Config:   a.cfg,
			Log:      a.log,
			Layout: guard.Layout{
				RepoRoot:      a.root,
				StateDir:      a.cfg.StateDir,
				WorkspacesDir: a.cfg.WorkspacesDir,
				UnitsDir:      filepath.Join(a.cfg.StateDir, "units"),
			},
			Branch: func(ctx context.Context) (string, error) {
				return a.git.CurrentBranch(ctx, a.root)
			},
		}
		if err := mcpserver.ServeStdio(deps); err != nil {
			return fmt.Errorf("mcp server exited: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
