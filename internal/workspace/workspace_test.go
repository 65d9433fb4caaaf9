package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wucoord/wu/internal/git"
)

// fakeGit implements git.Operations in-memory so workspace logic can be
// tested without spawning git processes.
type fakeGit struct {
	addedWorktrees  []string
	removedTrees    []string
	deletedBranches []string
	pushedRefspecs  []string
	commits         []string

	dirty     bool
	pulls     int
	pushErr   error
	commitErr error
}

func (f *fakeGit) RepoRoot(ctx context.Context, path string) (string, error) { return path, nil }
func (f *fakeGit) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return "main", nil
}
func (f *fakeGit) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	return f.dirty, nil
}

func (f *fakeGit) CommitChanges(ctx context.Context, repoPath string, opts git.CommitOptions) (string, error) {
	if f.commitErr != nil {
		return "", f.commitErr
	}
	f.commits = append(f.commits, opts.Message)
	return fmt.Sprintf("abc%04d", len(f.commits)), nil
}

func (f *fakeGit) Push(ctx context.Context, repoPath string, opts git.PushOptions) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushedRefspecs = append(f.pushedRefspecs, opts.Branch)
	return nil
}

func (f *fakeGit) Pull(ctx context.Context, repoPath string) error {
	f.pulls++
	return nil
}

func (f *fakeGit) AddWorktree(ctx context.Context, repoPath, path, branch, base string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	f.addedWorktrees = append(f.addedWorktrees, path)
	return nil
}

func (f *fakeGit) RemoveWorktree(ctx context.Context, repoPath, path string) error {
	f.removedTrees = append(f.removedTrees, path)
	return os.RemoveAll(path)
}

func (f *fakeGit) ListWorktrees(ctx context.Context, repoPath string) ([]git.Worktree, error) {
	return nil, nil
}

func (f *fakeGit) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	f.deletedBranches = append(f.deletedBranches, branch)
	return nil
}

func newTestManager(t *testing.T, fg *fakeGit) *Manager {
	t.Helper()
	root := t.TempDir()
	m, err := NewManager(Config{
		RepoRoot:      root,
		WorkspacesDir: filepath.Join(root, ".wu", "workspaces"),
		BaseBranch:    "main",
	}, fg)
	require.NoError(t, err)
	return m
}

func TestCreateStructuralNaming(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)

	ws, err := m.Create(context.Background(), "WU-42", "backend-api")
	require.NoError(t, err)

	assert.Equal(t, "WU-42", ws.WU)
	assert.Equal(t, "backend-api-wu-WU-42", filepath.Base(ws.Path))
	assert.Equal(t, "lane/backend-api/wu-WU-42", ws.Branch)
	require.Len(t, fg.addedWorktrees, 1)
}

func TestCreateRejectsExistingPath(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)

	_, err := m.Create(context.Background(), "WU-7", "docs")
	require.NoError(t, err)

	_, err = m.Create(context.Background(), "WU-7", "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestFindAndList(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)
	ctx := context.Background()

	_, err := m.Create(ctx, "WU-2", "docs")
	require.NoError(t, err)
	_, err = m.Create(ctx, "WU-1", "backend-api")
	require.NoError(t, err)

	// A stray directory that doesn't match the naming convention
	// must be ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(m.config.WorkspacesDir, "scratch"), 0755))

	ws, err := m.Find("WU-2")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "docs", ws.Lane)

	ws, err = m.Find("WU-99")
	require.NoError(t, err)
	assert.Nil(t, ws)

	all, err := m.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "WU-1", all[0].WU)
	assert.Equal(t, "WU-2", all[1].WU)
}

func TestFindWithoutWorkspacesDir(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)

	ws, err := m.Find("WU-1")
	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestRemoveDeletesBranch(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)
	ctx := context.Background()

	ws, err := m.Create(ctx, "WU-3", "infra")
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, ws))
	assert.Equal(t, []string{ws.Path}, fg.removedTrees)
	assert.Equal(t, []string{ws.Branch}, fg.deletedBranches)
}

func TestRemoveKeepsBranchWhenConfigured(t *testing.T) {
	fg := &fakeGit{}
	root := t.TempDir()
	m, err := NewManager(Config{
		RepoRoot:      root,
		WorkspacesDir: filepath.Join(root, "ws"),
		BaseBranch:    "main",
		KeepBranches:  true,
	}, fg)
	require.NoError(t, err)
	ctx := context.Background()

	ws, err := m.Create(ctx, "WU-3", "infra")
	require.NoError(t, err)
	require.NoError(t, m.Remove(ctx, ws))
	assert.Empty(t, fg.deletedBranches)
}

func TestRemoveRefusesDirtyWorktree(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)
	ctx := context.Background()

	ws, err := m.Create(ctx, "WU-3", "infra")
	require.NoError(t, err)

	fg.dirty = true
	err = m.Remove(ctx, ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uncommitted changes")
	assert.Empty(t, fg.removedTrees)

	fg.dirty = false
	require.NoError(t, m.Remove(ctx, ws))
}

func TestBeginRepairUpdatesBaseFirst(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)
	ctx := context.Background()

	tx, err := m.BeginRepair(ctx)
	require.NoError(t, err)
	defer tx.Discard(ctx)

	assert.Equal(t, 1, fg.pulls)
}

func TestRepairCommitPushesOntoBase(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)
	ctx := context.Background()

	tx, err := m.BeginRepair(ctx)
	require.NoError(t, err)
	defer tx.Discard(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(tx.Dir, "fix.txt"), []byte("x"), 0644))
	require.NoError(t, tx.Commit(ctx, "repair: clear stale lock for WU-9"))

	require.Len(t, fg.pushedRefspecs, 1)
	assert.Equal(t, tx.branch+":main", fg.pushedRefspecs[0])
	assert.Equal(t, []string{"repair: clear stale lock for WU-9"}, fg.commits)
}

func TestRepairConflictAbortsWholeRepair(t *testing.T) {
	fg := &fakeGit{
		pushErr: fmt.Errorf("git push failed: %w", git.ErrNonFastForward),
	}
	m := newTestManager(t, fg)
	ctx := context.Background()

	tx, err := m.BeginRepair(ctx)
	require.NoError(t, err)

	err = tx.Commit(ctx, "repair: synthesize claim event")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRepairConflict))

	tx.Discard(ctx)
	require.Len(t, fg.removedTrees, 1)
	require.Len(t, fg.deletedBranches, 1)
}

func TestRepairDoubleCommitRejected(t *testing.T) {
	fg := &fakeGit{}
	m := newTestManager(t, fg)
	ctx := context.Background()

	tx, err := m.BeginRepair(ctx)
	require.NoError(t, err)
	defer tx.Discard(ctx)

	require.NoError(t, tx.Commit(ctx, "repair: one"))
	require.Error(t, tx.Commit(ctx, "repair: two"))
}
