package git

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// AddWorktree creates a worktree at path on a new branch cut from base.
// On failure any partially created directory is cleaned up so a retry
// starts from a clean slate.
func (g *Git) AddWorktree(ctx context.Context, repoPath, path, branch, base string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("worktree path already exists: %s", path)
	}

	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "worktree", "add", "-b", branch, path, base)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("git worktree add failed: %w (output: %s)", err, string(output))
	}
	return nil
}

// RemoveWorktree removes a worktree and prunes the worktree list. A
// broken worktree that git refuses to remove falls back to manual
// directory removal plus a prune.
func (g *Git) RemoveWorktree(ctx context.Context, repoPath, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Already gone; prune any stale registration.
		g.pruneWorktrees(ctx, repoPath)
		return nil
	}

	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "worktree", "remove", path, "--force")
	if output, err := cmd.CombinedOutput(); err != nil {
		// Fall back to manual removal for broken worktrees.
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("git worktree remove failed (%s) and manual removal failed: %w", strings.TrimSpace(string(output)), rmErr)
		}
		g.pruneWorktrees(ctx, repoPath)
	}
	return nil
}

func (g *Git) pruneWorktrees(ctx context.Context, repoPath string) {
	// Best effort; a failed prune only leaves a stale entry in
	// `git worktree list` output.
	pruneCmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "worktree", "prune")
	pruneCmd.Run()
}

// ListWorktrees lists all worktrees registered on the repository,
// including the main checkout (always the first entry).
func (g *Git) ListWorktrees(ctx context.Context, repoPath string) ([]Worktree, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "worktree", "list", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git worktree list failed in %s: %w", repoPath, err)
	}

	var trees []Worktree
	var current *Worktree
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				trees = append(trees, *current)
			}
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if current != nil {
				current.Head = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
			}
		}
	}
	if current != nil {
		trees = append(trees, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse worktree list: %w", err)
	}
	return trees, nil
}
