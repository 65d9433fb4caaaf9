package git

import (
	"context"
)

// Operations provides the git operations the coordination core needs.
// The interface is implementation-agnostic so tests can substitute mocks
// for the CLI-backed implementation.
type Operations interface {
	// RepoRoot returns the top-level directory of the repository
	// containing path.
	RepoRoot(ctx context.Context, path string) (string, error)

	// CurrentBranch returns the checked-out branch name, or "HEAD" when
	// detached.
	CurrentBranch(ctx context.Context, repoPath string) (string, error)

	// HasUncommittedChanges reports whether the checkout has staged,
	// unstaged, or untracked changes.
	HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error)

	// CommitChanges creates a commit with the given message.
	// Returns the commit hash if successful.
	CommitChanges(ctx context.Context, repoPath string, opts CommitOptions) (string, error)

	// Push pushes a branch to the remote. A push rejected as
	// non-fast-forward returns an error wrapping ErrNonFastForward.
	Push(ctx context.Context, repoPath string, opts PushOptions) error

	// Pull fast-forwards the current branch from the remote.
	Pull(ctx context.Context, repoPath string) error

	// AddWorktree creates a worktree at path on a new branch cut from base.
	AddWorktree(ctx context.Context, repoPath, path, branch, base string) error

	// RemoveWorktree removes a worktree and prunes the worktree list.
	RemoveWorktree(ctx context.Context, repoPath, path string) error

	// ListWorktrees lists all worktrees registered on the repository.
	ListWorktrees(ctx context.Context, repoPath string) ([]Worktree, error)

	// DeleteBranch force-deletes a local branch.
	DeleteBranch(ctx context.Context, repoPath, branch string) error
}

// CommitOptions configures a git commit operation.
type CommitOptions struct {
	// Message is the commit message
	Message string

	// Author specifies the author (optional, uses git config if empty)
	Author string

	// AddAll stages all changes before committing (git add -A)
	AddAll bool

	// AllowEmpty allows creating an empty commit
	AllowEmpty bool
}

// PushOptions configures a git push operation.
type PushOptions struct {
	// Remote is the remote name (default "origin")
	Remote string

	// Branch is the branch to push (default: current branch)
	Branch string

	// Delete removes the remote branch instead of updating it
	Delete bool
}

// Worktree describes one entry from `git worktree list --porcelain`.
type Worktree struct {
	// Path is the worktree checkout directory
	Path string

	// Branch is the checked-out branch ref, empty when detached
	Branch string

	// Head is the commit the worktree is on
	Head string
}
