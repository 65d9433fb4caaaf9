// Package workspace manages the per-claim git worktrees that give each
// work unit an isolated checkout, and the short-lived repair workspaces
// the consistency checker uses to publish fixes.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wucoord/wu/internal/git"
	"github.com/wucoord/wu/internal/wuctx"
)

// Workspace describes one claim worktree.
type Workspace struct {
	// WU is the work unit identifier the workspace belongs to
	WU string

	// Lane is the lane slug embedded in the directory and branch names
	Lane string

	// Path is the worktree checkout directory
	Path string

	// Branch is the work branch checked out in the worktree
	Branch string
}

// Config holds configuration for the workspace manager.
type Config struct {
	// RepoRoot is the path to the main repository checkout
	RepoRoot string

	// WorkspacesDir is the directory where claim worktrees are created
	WorkspacesDir string

	// BaseBranch is the branch new work branches are cut from
	BaseBranch string

	// KeepBranches determines if work branches survive workspace removal.
	// If false, branches are deleted when the workspace is removed.
	KeepBranches bool
}

// Manager creates, finds, and removes claim workspaces.
type Manager struct {
	config Config
	git    git.Operations
}

// NewManager creates a workspace manager with the provided configuration.
func NewManager(cfg Config, g git.Operations) (*Manager, error) {
	if cfg.RepoRoot == "" {
		return nil, fmt.Errorf("RepoRoot cannot be empty")
	}
	if cfg.WorkspacesDir == "" {
		return nil, fmt.Errorf("WorkspacesDir cannot be empty")
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	if g == nil {
		return nil, fmt.Errorf("git operations cannot be nil")
	}
	return &Manager{config: cfg, git: g}, nil
}

// Create creates a worktree plus work branch for the given unit.
// The directory and branch names are structural so later context
// resolution can recover the unit id without any extra state.
func (m *Manager) Create(ctx context.Context, id, laneSlug string) (*Workspace, error) {
	if id == "" {
		return nil, fmt.Errorf("work unit id cannot be empty")
	}
	if laneSlug == "" {
		return nil, fmt.Errorf("lane slug cannot be empty")
	}

	path := filepath.Join(m.config.WorkspacesDir, wuctx.WorkspaceDirName(laneSlug, id))
	branch := wuctx.BranchName(laneSlug, id)

	if err := os.MkdirAll(m.config.WorkspacesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspaces dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("workspace already exists: %s", path)
	}

	if err := m.git.AddWorktree(ctx, m.config.RepoRoot, path, branch, m.config.BaseBranch); err != nil {
		return nil, fmt.Errorf("failed to create worktree for %s: %w", id, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		m.git.RemoveWorktree(ctx, m.config.RepoRoot, path)
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}

	return &Workspace{WU: id, Lane: laneSlug, Path: absPath, Branch: branch}, nil
}

// Remove removes a workspace's worktree and, unless KeepBranches is
// set, its work branch. A worktree with uncommitted changes is refused;
// a worktree too broken to report its status is still removable.
func (m *Manager) Remove(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return fmt.Errorf("workspace cannot be nil")
	}

	if dirty, err := m.git.HasUncommittedChanges(ctx, ws.Path); err == nil && dirty {
		return fmt.Errorf("workspace %s has uncommitted changes; commit or stash them before removal", ws.Path)
	}

	if err := m.git.RemoveWorktree(ctx, m.config.RepoRoot, ws.Path); err != nil {
		return fmt.Errorf("failed to remove worktree %s: %w", ws.Path, err)
	}

	if !m.config.KeepBranches && ws.Branch != "" {
		// The branch may already be gone (e.g. merged and deleted
		// remotely); removal failure is not fatal here.
		if err := m.git.DeleteBranch(ctx, m.config.RepoRoot, ws.Branch); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not delete branch %s: %v\n", ws.Branch, err)
		}
	}

	return nil
}

// Find returns the workspace for a unit id, or nil if none exists.
// Discovery is structural: it scans the workspaces directory for a
// name embedding the id rather than consulting any database.
func (m *Manager) Find(id string) (*Workspace, error) {
	entries, err := os.ReadDir(m.config.WorkspacesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read workspaces dir: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lane, wu, ok := wuctx.ParseWorkspaceDirName(e.Name())
		if !ok || wu != id {
			continue
		}
		return &Workspace{
			WU:     wu,
			Lane:   lane,
			Path:   filepath.Join(m.config.WorkspacesDir, e.Name()),
			Branch: wuctx.BranchName(lane, wu),
		}, nil
	}
	return nil, nil
}

// List returns all workspaces under the workspaces directory, sorted
// by unit id. Directories that don't match the naming convention are
// skipped.
func (m *Manager) List() ([]*Workspace, error) {
	entries, err := os.ReadDir(m.config.WorkspacesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read workspaces dir: %w", err)
	}

	var out []*Workspace
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lane, wu, ok := wuctx.ParseWorkspaceDirName(e.Name())
		if !ok {
			continue
		}
		out = append(out, &Workspace{
			WU:     wu,
			Lane:   lane,
			Path:   filepath.Join(m.config.WorkspacesDir, e.Name()),
			Branch: wuctx.BranchName(lane, wu),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WU < out[j].WU })
	return out, nil
}
