package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wucoord/wu/internal/config"
	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/guard"
	"github.com/wucoord/wu/internal/types"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	require.NoError(t, os.MkdirAll(cfg.StateDirPath(root), 0755))

	return Deps{
		RepoRoot: root,
		Config:   cfg,
		Log:      eventlog.New(cfg.EventsPath(root)),
		Layout: guard.Layout{
			RepoRoot:      root,
			StateDir:      cfg.StateDir,
			WorkspacesDir: cfg.WorkspacesDir,
			UnitsDir:      filepath.Join(cfg.StateDir, "units"),
		},
	}
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestCheckWriteToolBlocksCoordinatedWrite(t *testing.T) {
	deps := newDeps(t)
	// A workspace exists, so coordinated writes from the main checkout
	// are blocked.
	wsDir := filepath.Join(deps.Config.WorkspacesDirPath(deps.RepoRoot), "docs-wu-WU-1")
	require.NoError(t, os.MkdirAll(wsDir, 0755))

	tool := &checkWriteTool{deps: deps}

	res, err := tool.handle(context.Background(), callReq(map[string]any{
		"file_path": filepath.Join(deps.RepoRoot, "src", "main.go"),
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError == false)
	assert.Contains(t, textContent(t, res), "blocked")

	// Writes inside the claim workspace are allowed.
	res, err = tool.handle(context.Background(), callReq(map[string]any{
		"file_path": filepath.Join(wsDir, "src", "main.go"),
	}))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, res), "allowed")
}

func TestCheckWriteToolHonorsBranch(t *testing.T) {
	deps := newDeps(t)
	// No workspaces, no claim: without branch visibility this write
	// would be blocked, so the tool must agree with the subprocess hook
	// and permit non-protected branches.
	current := "feature-x"
	deps.Branch = func(ctx context.Context) (string, error) { return current, nil }

	tool := &checkWriteTool{deps: deps}
	target := map[string]any{"file_path": filepath.Join(deps.RepoRoot, "src", "main.go")}

	res, err := tool.handle(context.Background(), callReq(target))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, res), "allowed")
	assert.Contains(t, textContent(t, res), "feature-x")

	current = "main"
	res, err = tool.handle(context.Background(), callReq(target))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, res), "blocked")
}

func TestCheckWriteToolRequiresPath(t *testing.T) {
	tool := &checkWriteTool{deps: newDeps(t)}
	res, err := tool.handle(context.Background(), callReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStatusToolSingleUnit(t *testing.T) {
	deps := newDeps(t)
	ev := types.NewEvent(types.EventCreate, "WU-1", time.Now())
	ev.Lane = "Docs"
	ev.Title = "Write the manual"
	require.NoError(t, deps.Log.Append(ev))

	tool := &statusTool{deps: deps}
	res, err := tool.handle(context.Background(), callReq(map[string]any{"wu": "WU-1"}))
	require.NoError(t, err)

	text := textContent(t, res)
	assert.Contains(t, text, "WU-1")
	assert.Contains(t, text, "ready")
	assert.Contains(t, text, "Write the manual")
}

func TestStatusToolListsActiveOnly(t *testing.T) {
	deps := newDeps(t)
	now := time.Now()
	for _, e := range []types.Event{
		{Type: types.EventCreate, WU: "WU-1", Lane: "Docs", Title: "a", Timestamp: now},
		{Type: types.EventCreate, WU: "WU-2", Lane: "Docs", Title: "b", Timestamp: now},
		{Type: types.EventClaim, WU: "WU-2", Timestamp: now},
		{Type: types.EventComplete, WU: "WU-2", Timestamp: now},
	} {
		require.NoError(t, deps.Log.Append(e))
	}

	tool := &statusTool{deps: deps}
	res, err := tool.handle(context.Background(), callReq(nil))
	require.NoError(t, err)

	text := textContent(t, res)
	assert.Contains(t, text, "WU-1")
	assert.NotContains(t, text, "WU-2")
}

func TestStatusToolUnknownUnit(t *testing.T) {
	tool := &statusTool{deps: newDeps(t)}
	res, err := tool.handle(context.Background(), callReq(map[string]any{"wu": "WU-9"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewRegistersTools(t *testing.T) {
	s := New(newDeps(t))
	require.NotNil(t, s)
}
