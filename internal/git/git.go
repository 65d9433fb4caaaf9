// Package git wraps the git CLI for the coordination core: branch and
// worktree management, status queries, and the push that serves as the
// cross-process serialization point for main-line mutations.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNonFastForward is wrapped by Push when the remote rejects the update
// because it is not a fast-forward. Callers treat this as "someone else
// won the race": abort, refresh, retry. Never force.
var ErrNonFastForward = errors.New("push rejected: non-fast-forward")

// Git implements Operations using the git CLI.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string
}

// NewGit creates a new Git instance.
// It verifies that git is available on the system.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	// Verify git works
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath}, nil
}

// RepoRoot returns the top-level directory of the repository containing path.
func (g *Git) RepoRoot(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", path, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %s: %w", path, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the checked-out branch name. On a detached HEAD
// git prints "HEAD", which is passed through unchanged.
func (g *Git) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current branch in %s: %w", repoPath, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// HasUncommittedChanges reports whether the checkout at repoPath has
// staged, unstaged, or untracked changes.
func (g *Git) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git status failed in %s: %w", repoPath, err)
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// CommitChanges stages (when AddAll is set) and commits, returning the
// new commit hash.
func (g *Git) CommitChanges(ctx context.Context, repoPath string, opts CommitOptions) (string, error) {
	if opts.Message == "" {
		return "", fmt.Errorf("commit message is required")
	}

	// Stage changes if requested
	if opts.AddAll {
		addCmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "add", "-A")
		if err := addCmd.Run(); err != nil {
			return "", fmt.Errorf("git add failed in %s: %w", repoPath, err)
		}
	}

	args := []string{"-C", repoPath, "commit", "-m", opts.Message}
	if opts.Author != "" {
		args = append(args, "--author", opts.Author)
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}

	commitCmd := exec.CommandContext(ctx, g.gitPath, args...)
	if err := commitCmd.Run(); err != nil {
		return "", fmt.Errorf("git commit failed in %s: %w", repoPath, err)
	}

	// Get the commit hash
	hashCmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "rev-parse", "HEAD")
	hashOutput, err := hashCmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash in %s: %w", repoPath, err)
	}

	return strings.TrimSpace(string(hashOutput)), nil
}

// Push pushes a branch to the remote. The remote's atomic ref update is
// the only true serialization point across processes: when two writers
// race, exactly one push fast-forwards and the other fails here with
// ErrNonFastForward.
func (g *Git) Push(ctx context.Context, repoPath string, opts PushOptions) error {
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	args := []string{"-C", repoPath, "push", remote}
	if opts.Delete {
		args = append(args, "--delete")
	}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}

	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		out := string(output)
		if strings.Contains(out, "non-fast-forward") ||
			strings.Contains(out, "fetch first") ||
			strings.Contains(out, "[rejected]") {
			return fmt.Errorf("git push failed in %s: %w (output: %s)", repoPath, ErrNonFastForward, out)
		}
		return fmt.Errorf("git push failed in %s: %w (output: %s)", repoPath, err, out)
	}
	return nil
}

// Pull fast-forwards the current branch from its upstream. --ff-only so a
// diverged local branch fails loudly instead of creating a merge commit.
func (g *Git) Pull(ctx context.Context, repoPath string) error {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "pull", "--ff-only")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git pull failed in %s: %w (output: %s)", repoPath, err, string(output))
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (g *Git) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "branch", "-D", branch)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git branch -D %s failed in %s: %w (output: %s)", branch, repoPath, err, string(output))
	}
	return nil
}
