package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wucoord/wu/internal/guard"
)

// hookPayload is the PreToolUse event shape on stdin.
type hookPayload struct {
	ToolName  string `json:"tool_name"`
	ToolInput struct {
		FilePath string `json:"file_path"`
	} `json:"tool_input"`
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "PreToolUse write-enforcement hook",
	Long: `Run as a PreToolUse hook: reads a tool event as JSON on stdin
and decides whether the write is allowed.

Exit codes:
  0 - allowed (also for non-write tools and malformed input)
  2 - blocked, with the reason on stderr

Malformed or unparsable input always allows: the hook must never
break a tool pipeline it cannot understand.

Register it, for example, as:
  {"hooks": {"PreToolUse": [{"matcher": "Write|Edit|MultiEdit",
    "hooks": [{"type": "command", "command": "wu hook"}]}]}}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		decision := runHook(cmd.Context(), cmd.InOrStdin())
		if !decision.Allow {
			fmt.Fprintln(cmd.ErrOrStderr(), decision.Reason)
			os.Exit(2)
		}
		return nil
	},
}

// runHook parses the payload and decides. Every failure path returns
// an allow: fail-open is the contract for this surface.
func runHook(ctx context.Context, stdin io.Reader) guard.Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
	if err != nil {
		return guard.Decision{Allow: true, Reason: "unreadable input"}
	}
	var payload hookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return guard.Decision{Allow: true, Reason: "unparsable input"}
	}
	if payload.ToolName == "" || payload.ToolInput.FilePath == "" {
		return guard.Decision{Allow: true, Reason: "incomplete payload"}
	}

	a, err := loadApp(ctx)
	if err != nil {
		return guard.Decision{Allow: true, Reason: "no repository context"}
	}

	layout := guard.Layout{
		RepoRoot:      a.root,
		StateDir:      a.cfg.StateDir,
		WorkspacesDir: a.cfg.WorkspacesDir,
		UnitsDir:      filepath.Join(a.cfg.StateDir, "units"),
	}
	st, err := guard.GatherState(layout)
	if err != nil {
		return guard.Decision{Allow: true, Reason: "state unavailable"}
	}

	in := guard.Input{
		Tool:            payload.ToolName,
		Path:            payload.ToolInput.FilePath,
		RepoRoot:        a.root,
		HasCoordination: st.HasCoordination,
		Workspaces:      st.Workspaces,
		BypassBranch:    st.BypassBranch,
	}
	// This surface is branch-aware: a branch lookup failure leaves
	// Branch nil and the decision falls back to the branch-blind rules.
	cwd, err := os.Getwd()
	if err == nil {
		if branch, err := a.git.CurrentBranch(ctx, cwd); err == nil {
			in.Branch = &branch
		}
	}

	return guard.Decide(in)
}

func init() {
	rootCmd.AddCommand(hookCmd)
}
