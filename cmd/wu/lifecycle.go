package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/wudoc"
	"github.com/wucoord/wu/internal/wuctx"
)

// resolveID returns the unit id from args, or derives it from the
// current workspace or branch when no argument was given.
func (a *app) resolveID(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		if err := types.ValidateID(args[0]); err != nil {
			return "", err
		}
		return args[0], nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	r, err := wuctx.Resolve(ctx, wuctx.Context{
		Cwd:           cwd,
		RepoRoot:      a.root,
		WorkspacesDir: a.cfg.WorkspacesDirPath(a.root),
		Branch: func(ctx context.Context) (string, error) {
			return a.git.CurrentBranch(ctx, cwd)
		},
	})
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("no work unit id given and none derivable from the current workspace or branch")
	}
	return r.ID, nil
}

// assertWriteAllowed refuses lifecycle writes from a protected branch
// outside any claimed workspace. Without a git backend the branch is
// unknowable and the write proceeds.
func (a *app) assertWriteAllowed(ctx context.Context, operation string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	c := wuctx.Context{
		Cwd:           cwd,
		RepoRoot:      a.root,
		WorkspacesDir: a.cfg.WorkspacesDirPath(a.root),
	}
	if a.git != nil {
		c.Branch = func(ctx context.Context) (string, error) {
			return a.git.CurrentBranch(ctx, cwd)
		}
	}
	return wuctx.AssertWriteAllowed(ctx, c, operation)
}

// transition validates and appends a lifecycle event, then reconciles
// the unit document to the new status. The event log is written first;
// if the document write fails the checker will converge it later.
func (a *app) transition(ctx context.Context, id string, et types.EventType, note string) (types.Status, error) {
	if err := a.assertWriteAllowed(ctx, "wu "+string(et)); err != nil {
		return "", err
	}

	derived, err := a.log.Load()
	if err != nil {
		return "", err
	}
	st, ok := derived.Get(id)
	if !ok {
		return "", fmt.Errorf("unknown work unit %s: %w", id, types.ErrNotFound)
	}

	next, hasNext := et.StatusAfter()
	if !hasNext {
		return "", fmt.Errorf("event %q does not change status", et)
	}
	if err := types.ValidateTransition(st.Status, next); err != nil {
		return "", err
	}

	ev := types.NewEvent(et, id, time.Now())
	ev.Note = note
	if err := a.log.Append(ev); err != nil {
		return "", err
	}

	if err := a.updateDoc(id, func(u *types.WorkUnit) {
		u.Status = next
		switch et {
		case types.EventClaim:
			now := time.Now().UTC()
			u.ClaimedAt = &now
		case types.EventComplete:
			now := time.Now().UTC()
			u.CompletedAt = &now
			u.Locked = true
		case types.EventRelease:
			u.ClaimedAt = nil
			u.ClaimedMode = ""
			u.WorktreePath = ""
			u.Branch = ""
		}
	}); err != nil {
		return next, fmt.Errorf("event recorded but document update failed (run 'wu repair'): %w", err)
	}

	return next, nil
}

// writeStateFile writes one file under a subdirectory of the state dir.
func writeStateFile(a *app, sub, name, content string) error {
	dir := filepath.Join(a.cfg.StateDirPath(a.root), sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}

// updateDoc applies fn to a unit document and writes it back. A missing
// document is not an error here; the checker reports it.
func (a *app) updateDoc(id string, fn func(*types.WorkUnit)) error {
	doc, err := wudoc.ReadByID(a.cfg.UnitsDirPath(a.root), id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		return err
	}
	fn(&doc.Unit)
	return wudoc.Write(doc)
}
