// Package wuctx resolves the current work-unit context (unit id, lane
// slug, workspace path) from the working directory or the VCS branch,
// and enforces write policy for operations on the main line.
//
// Ambient process state (cwd, current branch) is never consulted
// implicitly: callers build a Context value and thread it through, which
// keeps every decision here deterministic and testable.
package wuctx

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// WorkspaceKind is the marker segment in workspace directory and branch
// names: <lane-slug>-wu-<id> and lane/<lane-slug>/wu-<id>.
const WorkspaceKind = "wu"

// Context carries every input the resolver is allowed to look at.
type Context struct {
	// Cwd is the directory the operation runs from (may be nested
	// arbitrarily deep inside a workspace).
	Cwd string

	// RepoRoot is the main checkout root.
	RepoRoot string

	// WorkspacesDir is the directory containing isolated workspaces,
	// e.g. ".worktrees" (a single path segment, matched by name).
	WorkspacesDir string

	// ProtectedBranches are blocked for unresolved writes. Defaults to
	// main and master when empty.
	ProtectedBranches []string

	// Branch looks up the current VCS branch. It is the only external
	// call the resolver may make, and only when the structural path
	// match fails.
	Branch func(ctx context.Context) (string, error)
}

func (c *Context) protected(branch string) bool {
	prot := c.ProtectedBranches
	if len(prot) == 0 {
		prot = []string{"main", "master"}
	}
	for _, p := range prot {
		if branch == p {
			return true
		}
	}
	return false
}

// Resolved is a successfully derived work-unit context.
type Resolved struct {
	ID string
	// LaneSlug is the slugged lane name as embedded in the workspace or
	// branch name; mapping back to the display lane goes through the
	// unit document.
	LaneSlug string
	// WorkspacePath is the workspace root directory, empty when the
	// context came from a branch-name match only.
	WorkspacePath string
}

// wsDirPattern matches a workspace directory name: <lane-slug>-wu-<id>.
var wsDirPattern = regexp.MustCompile(`^([a-z0-9-]+)-` + WorkspaceKind + `-([A-Za-z]+-\d+)$`)

// branchPattern matches a workspace branch name: lane/<lane-slug>/wu-<id>.
var branchPattern = regexp.MustCompile(`^lane/([a-z0-9-]+)/` + WorkspaceKind + `-([A-Za-z]+-\d+)$`)

// WorkspaceDirName returns the directory name for a unit's workspace.
func WorkspaceDirName(laneSlug, id string) string {
	return fmt.Sprintf("%s-%s-%s", laneSlug, WorkspaceKind, id)
}

// BranchName returns the branch name for a unit's workspace.
func BranchName(laneSlug, id string) string {
	return fmt.Sprintf("lane/%s/%s-%s", laneSlug, WorkspaceKind, id)
}

// ParseWorkspaceDirName parses a workspace directory name, returning the
// lane slug and unit id, or ok=false when the name is not a workspace.
func ParseWorkspaceDirName(name string) (laneSlug, id string, ok bool) {
	m := wsDirPattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ResolveFromPath derives the work-unit context structurally from the
// working directory: it looks for a `<workspaces-dir>/<lane-slug>-wu-<id>`
// pair anywhere on the path. No external calls; works from any nested
// subdirectory. Returns nil when the path does not match.
func ResolveFromPath(c Context) *Resolved {
	if c.Cwd == "" || c.WorkspacesDir == "" {
		return nil
	}
	wsDir := filepath.Base(c.WorkspacesDir)
	segments := strings.Split(filepath.ToSlash(filepath.Clean(c.Cwd)), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] != wsDir {
			continue
		}
		m := wsDirPattern.FindStringSubmatch(segments[i+1])
		if m == nil {
			continue
		}
		return &Resolved{
			ID:            m[2],
			LaneSlug:      m[1],
			WorkspacePath: strings.Join(segments[:i+2], string(filepath.Separator)),
		}
	}
	return nil
}

// ResolveFromBranch derives the work-unit context from the current VCS
// branch name. Costs one VCS query. Returns nil when the branch does not
// match the lane/<slug>/wu-<id> pattern.
func ResolveFromBranch(ctx context.Context, c Context) (*Resolved, error) {
	if c.Branch == nil {
		return nil, nil
	}
	branch, err := c.Branch(ctx)
	if err != nil {
		return nil, fmt.Errorf("branch lookup failed: %w", err)
	}
	m := branchPattern.FindStringSubmatch(branch)
	if m == nil {
		return nil, nil
	}
	return &Resolved{ID: m[2], LaneSlug: m[1]}, nil
}

// Resolve tries the structural path match first (free), then the branch
// match (one VCS query). Returns nil when neither matches.
func Resolve(ctx context.Context, c Context) (*Resolved, error) {
	if r := ResolveFromPath(c); r != nil {
		return r, nil
	}
	return ResolveFromBranch(ctx, c)
}

// BlockedWriteError is raised when a write operation is refused outside a
// workspace context. It always carries concrete remediation steps.
type BlockedWriteError struct {
	Operation string
	Branch    string
	Hints     []string
}

func (e *BlockedWriteError) Error() string {
	return fmt.Sprintf("%s blocked on protected branch %q: not inside a claimed workspace\n  - %s",
		e.Operation, e.Branch, strings.Join(e.Hints, "\n  - "))
}

// AssertWriteAllowed enforces write policy for an operation:
//
//   - inside a resolved workspace context (path or branch): allowed
//   - otherwise on a protected branch (main/master): blocked, with
//     remediation steps in the error
//   - otherwise (feature branch, detached head): allowed
//
// The last case is a deliberate, documented asymmetry, not a bug: a user
// already off the main line has opted out of coordination and blocking
// them would only break unrelated tooling.
func AssertWriteAllowed(ctx context.Context, c Context, operation string) error {
	r, err := Resolve(ctx, c)
	if err != nil {
		return err
	}
	if r != nil {
		return nil
	}

	if c.Branch == nil {
		return nil
	}
	branch, err := c.Branch(ctx)
	if err != nil {
		return fmt.Errorf("branch lookup failed: %w", err)
	}
	if !c.protected(branch) {
		return nil
	}

	return &BlockedWriteError{
		Operation: operation,
		Branch:    branch,
		Hints: []string{
			"claim a work unit first: wu claim <WU-id>",
			fmt.Sprintf("then work inside its workspace: cd %s", filepath.Join(c.WorkspacesDir, "<lane>-wu-<WU-id>")),
			"then retry: " + operation,
		},
	}
}
