// Package guard decides whether a tool call may write a given path. The
// decision logic lives in one pure function, Decide, shared by three
// surfaces: the subprocess hook (wu hook), the in-process check, and the
// MCP server. Each surface gathers whatever inputs it has and calls
// Decide, which guarantees the surfaces agree except where an input is
// deliberately unavailable to one of them.
package guard

import (
	"path/filepath"
	"strings"
)

// writeTools classifies the tool names whose calls mutate files. Reads,
// shell execution, and listings are never gated.
var writeTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// IsWriteTool reports whether a tool call is write-classified.
func IsWriteTool(tool string) bool {
	return writeTools[tool]
}

// DefaultAllowlist are the coordination-owned directories writable on the
// main checkout even without a claim: the state directory (which also
// holds lane specs and tool config), agent tool configuration, and the
// plan directory.
var DefaultAllowlist = []string{".wu", ".claude", "plans"}

// Input carries everything Decide may look at. Surfaces that cannot
// observe an input leave it at its zero value; in particular Branch is
// nil for the in-process surface, which reasons purely from
// claim/workspace context.
type Input struct {
	// Tool is the tool name from the hook payload (e.g. "Write").
	Tool string

	// Path is the write target, absolute or relative to RepoRoot.
	Path string

	// RepoRoot is the main checkout root.
	RepoRoot string

	// HasCoordination is false when no coordination metadata exists for
	// the repository at all; everything is then allowed.
	HasCoordination bool

	// Workspaces are the currently existing isolated workspace roots.
	Workspaces []string

	// BypassBranch is the recorded branch of an active branch-pr claim,
	// empty when no such claim exists.
	BypassBranch string

	// Branch is the current VCS branch, or nil when the surface does not
	// consult branch state.
	Branch *string

	// Allowlist overrides DefaultAllowlist when non-empty.
	Allowlist []string
}

// Decision is an allow/block verdict with a human-readable reason.
type Decision struct {
	Allow  bool
	Reason string
}

func allow(reason string) Decision { return Decision{Allow: true, Reason: reason} }
func block(reason string) Decision { return Decision{Allow: false, Reason: reason} }

// Decide applies the write-enforcement policy, in order:
//
//  1. non-write tools are always allowed
//  2. paths outside the repository root are always allowed
//  3. no coordination metadata at all: allow (graceful degradation)
//  4. an active branch-pr claim whose branch matches allows main-line
//     writes (surfaces without branch visibility trust the claim)
//  5. while any isolated workspace exists: writes inside a workspace are
//     allowed, writes to the main checkout are blocked unconditionally
//  6. otherwise a branch-aware surface permits non-protected branches,
//     and the coordination-owned allowlist applies on the main line;
//     everything else is blocked (fail-closed default)
func Decide(in Input) Decision {
	if !IsWriteTool(in.Tool) {
		return allow("not a write tool")
	}

	target := in.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(in.RepoRoot, target)
	}
	target = filepath.Clean(target)

	if in.RepoRoot != "" && !within(in.RepoRoot, target) {
		return allow("outside repository root")
	}

	if !in.HasCoordination {
		return allow("no coordination metadata")
	}

	if in.BypassBranch != "" && (in.Branch == nil || *in.Branch == in.BypassBranch) {
		return allow("active branch-pr claim on " + in.BypassBranch)
	}

	if len(in.Workspaces) > 0 {
		for _, ws := range in.Workspaces {
			if within(ws, target) {
				return allow("inside workspace " + filepath.Base(ws))
			}
		}
		return block("workspaces exist: main checkout is read-only, write inside your claimed workspace")
	}

	if in.Branch != nil && !isProtected(*in.Branch) {
		return allow("on branch " + *in.Branch + " (not a protected branch)")
	}

	allowlist := in.Allowlist
	if len(allowlist) == 0 {
		allowlist = DefaultAllowlist
	}
	for _, dir := range allowlist {
		if within(filepath.Join(in.RepoRoot, dir), target) {
			return allow("coordination-owned path " + dir)
		}
	}

	return block("no claim and no workspace: claim a work unit before writing (wu claim <WU-id>)")
}

func isProtected(branch string) bool {
	return branch == "main" || branch == "master"
}

// within reports whether target is root or inside it.
func within(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if root == target {
		return true
	}
	return strings.HasPrefix(target, root+string(filepath.Separator))
}
