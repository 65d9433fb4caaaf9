package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wucoord/wu/internal/config"
	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/git"
	"github.com/wucoord/wu/internal/storage"
	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/workspace"
	"github.com/wucoord/wu/internal/wudoc"
)

// fakeGit simulates worktrees by copying the coordination state dir
// into the checkout, and simulates a push landing on the coordination
// line by copying it back.
type fakeGit struct {
	repoRoot string
	pushErr  error
	pushes   int
}

func (f *fakeGit) RepoRoot(ctx context.Context, path string) (string, error) { return f.repoRoot, nil }
func (f *fakeGit) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return "main", nil
}
func (f *fakeGit) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	return false, nil
}
func (f *fakeGit) CommitChanges(ctx context.Context, repoPath string, opts git.CommitOptions) (string, error) {
	return "abcd123", nil
}
func (f *fakeGit) Pull(ctx context.Context, repoPath string) error { return nil }
func (f *fakeGit) ListWorktrees(ctx context.Context, repoPath string) ([]git.Worktree, error) {
	return nil, nil
}
func (f *fakeGit) DeleteBranch(ctx context.Context, repoPath, branch string) error { return nil }

func (f *fakeGit) AddWorktree(ctx context.Context, repoPath, path, branch, base string) error {
	if err := os.MkdirAll(filepath.Join(path, ".wu"), 0755); err != nil {
		return err
	}
	return os.CopyFS(filepath.Join(path, ".wu"), os.DirFS(filepath.Join(f.repoRoot, ".wu")))
}

func (f *fakeGit) RemoveWorktree(ctx context.Context, repoPath, path string) error {
	return os.RemoveAll(path)
}

func (f *fakeGit) Push(ctx context.Context, repoPath string, opts git.PushOptions) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes++
	dst := filepath.Join(f.repoRoot, ".wu")
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	return os.CopyFS(dst, os.DirFS(filepath.Join(repoPath, ".wu")))
}

type fixture struct {
	root   string
	doctor *Doctor
	git    *fakeGit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	// Workspaces live outside .wu here so fake pushes don't clobber them.
	cfg.WorkspacesDir = "workspaces"

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".wu", "units"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".wu", "locks"), 0755))

	fg := &fakeGit{repoRoot: root}
	ws, err := workspace.NewManager(workspace.Config{
		RepoRoot:      root,
		WorkspacesDir: cfg.WorkspacesDirPath(root),
		BaseBranch:    cfg.BaseBranch,
	}, fg)
	require.NoError(t, err)

	// Outside .wu so fake pushes can't clobber it.
	store, err := storage.Open(filepath.Join(t.TempDir(), "wu.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &fixture{
		root: root,
		git:  fg,
		doctor: &Doctor{
			RepoRoot:    root,
			Config:      cfg,
			Log:         eventlog.New(cfg.EventsPath(root)),
			WS:          ws,
			Store:       store,
			PushLimiter: rate.NewLimiter(rate.Inf, 1),
		},
	}
}

func (f *fixture) append(t *testing.T, et types.EventType, wu string) {
	t.Helper()
	ev := types.NewEvent(et, wu, time.Now())
	if et == types.EventCreate {
		ev.Lane = "Docs"
		ev.Title = "title for " + wu
	}
	if et == types.EventClaim {
		ev.Mode = types.ClaimModeWorkspace
	}
	require.NoError(t, f.doctor.Log.Append(ev))
}

func (f *fixture) writeDoc(t *testing.T, id string, status types.Status) {
	t.Helper()
	require.NoError(t, wudoc.Write(&wudoc.Doc{
		Unit: types.WorkUnit{
			ID: id, Title: "title for " + id, Lane: "Docs",
			Status: status, Locked: status.IsTerminal(),
		},
		Path: wudoc.PathFor(f.doctor.Config.UnitsDirPath(f.root), id),
	}))
}

func (f *fixture) addWorkspace(t *testing.T, id string) {
	t.Helper()
	dir := filepath.Join(f.doctor.Config.WorkspacesDirPath(f.root), "docs-wu-"+id)
	require.NoError(t, os.MkdirAll(dir, 0755))
}

func violationKinds(vs []Violation) []string {
	var out []string
	for _, v := range vs {
		out = append(out, v.Kind)
	}
	return out
}

func TestCheckAllCleanState(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusReady)

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestCheckDetectsStatusMismatch(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	f.addWorkspace(t, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusReady) // log says in_progress

	vs, err := f.doctor.Check(context.Background(), "WU-1")
	require.NoError(t, err)
	assert.Equal(t, []string{KindStatusMismatch}, violationKinds(vs))
}

func TestCheckDetectsMissingDocumentAndLockDrift(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	f.append(t, types.EventComplete, "WU-1")
	// No doc, no lock stamp for a done unit.

	vs, err := f.doctor.Check(context.Background(), "WU-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KindMissingDocument, KindMissingLock}, violationKinds(vs))
}

func TestCheckDetectsZombieAndMissingClaim(t *testing.T) {
	f := newFixture(t)
	// WU-1: claimed but workspace vanished.
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusInProgress)
	// WU-2: workspace exists but no claim logged.
	f.append(t, types.EventCreate, "WU-2")
	f.writeDoc(t, "WU-2", types.StatusReady)
	f.addWorkspace(t, "WU-2")

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{KindZombie, KindMissingClaim}, violationKinds(vs))
	assert.Equal(t, "WU-1", vs[0].WU)
	assert.Equal(t, "WU-2", vs[1].WU)
}

func TestBranchPRClaimIsNotAZombie(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	doc := &wudoc.Doc{
		Unit: types.WorkUnit{
			ID: "WU-1", Title: "t", Lane: "Docs",
			Status: types.StatusInProgress, ClaimedMode: types.ClaimModeBranchPR,
			Branch: "lane/docs/wu-WU-1",
		},
		Path: wudoc.PathFor(f.doctor.Config.UnitsDirPath(f.root), "WU-1"),
	}
	require.NoError(t, wudoc.Write(doc))

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestRepairStatusMismatchFollowsLog(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	f.append(t, types.EventComplete, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusInProgress)
	require.NoError(t, writeLockStamp(f.doctor.Config.LocksDirPath(f.root), "WU-1", time.Now()))

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{KindStatusMismatch}, violationKinds(vs))

	res, err := f.doctor.Repair(context.Background(), vs, false)
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, 1, f.git.pushes)

	doc, err := wudoc.ReadByID(f.doctor.Config.UnitsDirPath(f.root), "WU-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, doc.Unit.Status)
	assert.True(t, doc.Unit.Locked)

	// Clean after repair.
	vs, err = f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vs)

	entries, err := f.doctor.Store.Journal(context.Background(), "WU-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindStatusMismatch, entries[0].Kind)
}

func TestRepairDryRunChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusReady)
	f.addWorkspace(t, "WU-1")

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, vs)

	res, err := f.doctor.Repair(context.Background(), vs, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 0, f.git.pushes)

	doc, err := wudoc.ReadByID(f.doctor.Config.UnitsDirPath(f.root), "WU-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusReady, doc.Unit.Status)
}

func TestRepairAbortsWhenPushLosesRace(t *testing.T) {
	f := newFixture(t)
	f.git.pushErr = git.ErrNonFastForward
	f.append(t, types.EventCreate, "WU-1")
	f.append(t, types.EventClaim, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusReady)
	f.addWorkspace(t, "WU-1")

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)

	_, err = f.doctor.Repair(context.Background(), vs, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, workspace.ErrRepairConflict)

	// Nothing was journaled or changed.
	entries, err := f.doctor.Store.Journal(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecoverZombieBoundedAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.doctor.Config.MaxRecoveryAttempts = 2

	makeZombie := func() {
		f.append(t, types.EventCreate, "WU-1")
		f.append(t, types.EventClaim, "WU-1")
		f.writeDoc(t, "WU-1", types.StatusInProgress)
	}
	makeZombie()

	// First recovery releases the unit back to ready.
	out, err := f.doctor.Recover(ctx, "WU-1", false)
	require.NoError(t, err)
	assert.True(t, out.Recovered)
	assert.Equal(t, 1, out.Attempt)

	vs, err := f.doctor.Check(ctx, "WU-1")
	require.NoError(t, err)
	assert.Equal(t, []string{KindStatusMismatch}, violationKinds(vs)) // doc still says in_progress

	// Unit goes zombie again: second attempt still allowed.
	f.append(t, types.EventClaim, "WU-1")
	out, err = f.doctor.Recover(ctx, "WU-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempt)

	// Third strike escalates.
	f.append(t, types.EventClaim, "WU-1")
	out, err = f.doctor.Recover(ctx, "WU-1", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManualIntervention)
	assert.True(t, out.Escalated)

	// Escalated units stay escalated until reset.
	_, err = f.doctor.Recover(ctx, "WU-1", false)
	require.ErrorIs(t, err, ErrManualIntervention)

	require.NoError(t, f.doctor.ResetRecovery(ctx, "WU-1"))
	out, err = f.doctor.Recover(ctx, "WU-1", false)
	require.NoError(t, err)
	assert.True(t, out.Recovered)
}

func TestRecoverNonZombieFails(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-1")
	f.writeDoc(t, "WU-1", types.StatusReady)

	_, err := f.doctor.Recover(context.Background(), "WU-1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a zombie")
}
