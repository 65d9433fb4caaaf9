package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wucoord/wu/internal/guard"
	"github.com/wucoord/wu/internal/types"
)

// checkWriteTool answers whether a write to a path is allowed, using
// the same decision the PreToolUse hook makes.
type checkWriteTool struct {
	deps Deps
}

func (t *checkWriteTool) definition() mcp.Tool {
	return mcp.NewTool("coordination_check_write",
		mcp.WithDescription("Check whether writing a file is allowed under work unit coordination. Returns the decision and the reason."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Absolute path of the file that would be written"),
		),
		mcp.WithString("tool_name",
			mcp.Description("Name of the tool performing the write (default Write)"),
		),
	)
}

func (t *checkWriteTool) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tool := req.GetString("tool_name", "Write")

	st, err := guard.GatherState(t.deps.Layout)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("coordination check failed: %v", err)), nil
	}
	in := guard.Input{
		Tool:            tool,
		Path:            path,
		RepoRoot:        t.deps.Layout.RepoRoot,
		HasCoordination: st.HasCoordination,
		Workspaces:      st.Workspaces,
		BypassBranch:    st.BypassBranch,
	}
	if t.deps.Branch != nil {
		if b, err := t.deps.Branch(ctx); err == nil {
			in.Branch = &b
		}
	}
	decision := guard.Decide(in)

	verdict := "allowed"
	if !decision.Allow {
		verdict = "blocked"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", verdict, decision.Reason)), nil
}

// statusTool reports derived work unit state from the event log.
type statusTool struct {
	deps Deps
}

func (t *statusTool) definition() mcp.Tool {
	return mcp.NewTool("coordination_status",
		mcp.WithDescription("Report work unit status derived from the coordination event log. With no arguments, lists all non-terminal units."),
		mcp.WithString("wu",
			mcp.Description("A work unit id to report on (e.g. WU-12)"),
		),
	)
}

func (t *statusTool) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	derived, err := t.deps.Log.Load()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load event log: %v", err)), nil
	}

	if id := req.GetString("wu", ""); id != "" {
		if err := types.ValidateID(id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		st, ok := derived.Get(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no such work unit: %s", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"%s  %s  lane=%s  last-event=%s\n%s",
			id, st.Status, st.Lane, st.LastEventAt.Format("2006-01-02 15:04"), st.Title,
		)), nil
	}

	var lines []string
	for _, id := range derived.IDs() {
		st, _ := derived.Get(id)
		if st.Status.IsTerminal() {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s  %-12s %-20s %s", id, st.Status, st.Lane, st.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no active work units"), nil
	}
	sort.Strings(lines)
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
