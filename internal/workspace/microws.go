package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wucoord/wu/internal/git"
)

// ErrRepairConflict indicates a repair could not be published because
// the coordination line moved while the repair was in flight. The repair
// must be retried from fresh state; nothing was published.
var ErrRepairConflict = errors.New("repair rejected: coordination line advanced concurrently")

// RepairTx is a short-lived workspace for publishing a repair to the
// coordination line. It holds an ephemeral worktree on an ephemeral
// branch cut from the base branch. The caller mutates files under Dir,
// calls Commit to publish, and always calls Discard.
//
// The push at the end of Commit is the only serialization point: two
// concurrent repairs both commit locally, and the loser's push is
// rejected as non-fast-forward, aborting that repair entirely.
type RepairTx struct {
	// Dir is the worktree directory to mutate files under
	Dir string

	m         *Manager
	branch    string
	remote    string
	committed bool
}

// BeginRepair cuts an ephemeral branch from the base branch and checks
// it out in a temporary worktree. The base branch is fast-forwarded
// first so the repair starts from the latest published state; a failed
// pull is only a warning since a stale base is still caught at push
// time as a non-fast-forward.
func (m *Manager) BeginRepair(ctx context.Context) (*RepairTx, error) {
	if err := m.git.Pull(ctx, m.config.RepoRoot); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not update %s before repair: %v\n", m.config.BaseBranch, err)
	}

	branch := "wu-repair-" + uuid.New().String()[:8]
	dir := filepath.Join(os.TempDir(), branch)

	if err := m.git.AddWorktree(ctx, m.config.RepoRoot, dir, branch, m.config.BaseBranch); err != nil {
		return nil, fmt.Errorf("failed to create repair workspace: %w", err)
	}

	return &RepairTx{
		Dir:    dir,
		m:      m,
		branch: branch,
		remote: "origin",
	}, nil
}

// Commit stages everything in the repair workspace, commits it with the
// given message, and pushes the result onto the base branch. A push
// rejected as non-fast-forward returns ErrRepairConflict and publishes
// nothing; the caller should re-derive state and retry the repair.
func (t *RepairTx) Commit(ctx context.Context, message string) error {
	if t.committed {
		return fmt.Errorf("repair already committed")
	}

	hash, err := t.m.git.CommitChanges(ctx, t.Dir, git.CommitOptions{
		Message: message,
		AddAll:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to commit repair: %w", err)
	}

	pushErr := t.m.git.Push(ctx, t.Dir, git.PushOptions{
		Remote: t.remote,
		Branch: t.branch + ":" + t.m.config.BaseBranch,
	})
	if pushErr != nil {
		if errors.Is(pushErr, git.ErrNonFastForward) {
			return fmt.Errorf("%w (commit %s discarded)", ErrRepairConflict, hash)
		}
		return fmt.Errorf("failed to push repair: %w", pushErr)
	}

	t.committed = true
	return nil
}

// Discard removes the repair worktree and branch. Safe to call after a
// successful Commit; the pushed commit is unaffected.
func (t *RepairTx) Discard(ctx context.Context) {
	if err := t.m.git.RemoveWorktree(ctx, t.m.config.RepoRoot, t.Dir); err != nil {
		// Fall back to plain removal so a broken worktree doesn't
		// leave trash in the temp dir.
		os.RemoveAll(t.Dir)
	}
	t.m.git.DeleteBranch(ctx, t.m.config.RepoRoot, t.branch)
}
