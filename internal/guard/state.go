package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/wuctx"
	"github.com/wucoord/wu/internal/wudoc"
)

// Layout names the on-disk locations state gathering reads from.
type Layout struct {
	// RepoRoot is the main checkout root.
	RepoRoot string

	// StateDir is the coordination state directory, relative to RepoRoot
	// (".wu"). Its absence means the repository is not coordinated.
	StateDir string

	// WorkspacesDir is the isolated-workspace directory, relative to
	// RepoRoot (".worktrees").
	WorkspacesDir string

	// UnitsDir is the unit-document directory, relative to RepoRoot.
	UnitsDir string
}

// State is the gathered coordination state every enforcement surface
// feeds into Decide.
type State struct {
	HasCoordination bool
	Workspaces      []string
	BypassBranch    string
}

// GatherState reads the coordination state for a repository: whether the
// state directory exists, which isolated workspaces are present, and
// whether an active branch-pr claim grants a main-line bypass.
func GatherState(l Layout) (State, error) {
	var st State

	if _, err := os.Stat(filepath.Join(l.RepoRoot, l.StateDir)); err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("failed to stat state directory: %w", err)
	}
	st.HasCoordination = true

	wsRoot := filepath.Join(l.RepoRoot, l.WorkspacesDir)
	entries, err := os.ReadDir(wsRoot)
	if err != nil && !os.IsNotExist(err) {
		return st, fmt.Errorf("failed to list workspaces: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, _, ok := wuctx.ParseWorkspaceDirName(e.Name()); ok {
			st.Workspaces = append(st.Workspaces, filepath.Join(wsRoot, e.Name()))
		}
	}
	sort.Strings(st.Workspaces)

	docs, _, err := wudoc.List(filepath.Join(l.RepoRoot, l.UnitsDir))
	if err != nil {
		return st, err
	}
	for _, doc := range docs {
		if doc.Unit.Status == types.StatusInProgress &&
			doc.Unit.ClaimedMode == types.ClaimModeBranchPR &&
			doc.Unit.Branch != "" {
			st.BypassBranch = doc.Unit.Branch
			break
		}
	}

	return st, nil
}

// Check is the in-process enforcement surface. It gathers state and
// decides without consulting the branch name at all: on a detached head
// with no workspace and no claim it stays fail-closed, a documented
// divergence from the branch-aware surfaces.
func Check(l Layout, tool, path string) (Decision, error) {
	st, err := GatherState(l)
	if err != nil {
		return Decision{}, err
	}
	return Decide(Input{
		Tool:            tool,
		Path:            path,
		RepoRoot:        l.RepoRoot,
		HasCoordination: st.HasCoordination,
		Workspaces:      st.Workspaces,
		BypassBranch:    st.BypassBranch,
	}), nil
}
