package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/wudoc"
)

func dupEvents() []types.Event {
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mk := func(et types.EventType, wu string) types.Event {
		at = at.Add(time.Minute)
		e := types.Event{Type: et, WU: wu, Timestamp: at}
		if et == types.EventCreate {
			e.Lane = "Docs"
			e.Title = "title for " + wu
		}
		return e
	}
	return []types.Event{
		mk(types.EventCreate, "WU-1"),
		mk(types.EventClaim, "WU-1"),
		mk(types.EventComplete, "WU-1"),
		mk(types.EventCreate, "WU-3"),
		mk(types.EventCreate, "WU-1"), // collision: a second unit authored as WU-1
		mk(types.EventClaim, "WU-1"),
	}
}

func planDoc(dir, filename, id string) *wudoc.Doc {
	return &wudoc.Doc{
		Unit: types.WorkUnit{ID: id, Title: "title for " + id, Lane: "Docs", Status: types.StatusReady},
		Path: filepath.Join(dir, filename),
	}
}

func TestPlanRemapsSplitsAtSecondCreate(t *testing.T) {
	now := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	plans, rewritten, moves, err := planRemaps(dupEvents(), nil, "", now)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Empty(t, moves)

	// Next free number under the WU prefix is 4.
	assert.Equal(t, "WU-1", plans[0].OldID)
	assert.Equal(t, "WU-4", plans[0].NewID)
	assert.Equal(t, 2, plans[0].MovedEvents)

	// First lifecycle keeps the id, second moves wholesale.
	var old, moved int
	for _, e := range rewritten {
		switch e.WU {
		case "WU-1":
			old++
		case "WU-4":
			moved++
		}
	}
	assert.Equal(t, 3, old)
	assert.Equal(t, 2, moved)

	// The rewritten log replays without duplicate creates.
	plans2, _, _, err := planRemaps(rewritten, nil, "", now)
	require.NoError(t, err)
	assert.Empty(t, plans2)
}

func TestPlanRemapsNoDuplicates(t *testing.T) {
	events := dupEvents()[:4]
	plans, rewritten, moves, err := planRemaps(events, nil, "", time.Now())
	require.NoError(t, err)
	assert.Empty(t, plans)
	assert.Empty(t, moves)
	assert.Equal(t, events, rewritten)
}

func TestPlanRemapsDocumentCollision(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	events := []types.Event{
		{Type: types.EventCreate, WU: "WU-100", Lane: "Docs", Title: "t", Timestamp: now},
	}
	docs := []*wudoc.Doc{
		planDoc(dir, "WU-100-copy.md", "WU-100"),
		planDoc(dir, "WU-100.md", "WU-100"),
	}

	plans, rewritten, moves, err := planRemaps(events, docs, dir, now)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "WU-100", plans[0].OldID)
	assert.Equal(t, "WU-101", plans[0].NewID)
	assert.Equal(t, 0, plans[0].MovedEvents)
	assert.Equal(t, 1, plans[0].MovedDocs)

	// The canonical file keeps the id; the copy moves to the fresh one.
	require.Len(t, moves, 1)
	assert.Equal(t, filepath.Join(dir, "WU-100-copy.md"), moves[0].fromPath)
	assert.Equal(t, "WU-101", moves[0].newID)

	// A create event is synthesized so the split unit is logged.
	require.Len(t, rewritten, 2)
	assert.Equal(t, types.EventCreate, rewritten[1].Type)
	assert.Equal(t, "WU-101", rewritten[1].WU)
}

func TestPlanRemapsMisnamedDocumentKeepsID(t *testing.T) {
	dir := t.TempDir()
	events := []types.Event{
		{Type: types.EventCreate, WU: "WU-5", Lane: "Docs", Title: "t", Timestamp: time.Now()},
	}
	docs := []*wudoc.Doc{planDoc(dir, "WU-5-old.md", "WU-5")}

	plans, _, moves, err := planRemaps(events, docs, dir, time.Now())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "WU-5", plans[0].OldID)
	assert.Equal(t, "WU-5", plans[0].NewID)
	require.Len(t, moves, 1)
	assert.Equal(t, "WU-5", moves[0].newID)
}

func TestPlanRemapsFreshIDSkipsAuthoredDocs(t *testing.T) {
	dir := t.TempDir()
	// WU-9 exists only as an authored document; the split off WU-1 must
	// not land on it.
	docs := []*wudoc.Doc{planDoc(dir, "WU-9.md", "WU-9")}

	plans, _, _, err := planRemaps(dupEvents(), docs, dir, time.Now())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "WU-10", plans[0].NewID)
}

func TestCheckAllReportsDocumentDuplicate(t *testing.T) {
	f := newFixture(t)
	f.append(t, types.EventCreate, "WU-100")
	f.writeDoc(t, "WU-100", types.StatusReady)

	unitsDir := f.doctor.Config.UnitsDirPath(f.root)
	copyDoc := planDoc(unitsDir, "WU-100-copy.md", "WU-100")
	require.NoError(t, wudoc.Write(copyDoc))

	vs, err := f.doctor.CheckAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{KindDuplicateID}, violationKinds(vs))
	assert.Equal(t, "WU-100", vs[0].WU)
	assert.Contains(t, vs[0].Detail, "2 documents")
}

func TestRemapDuplicatesEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.doctor.Log.AppendAll(dupEvents()))
	f.writeDoc(t, "WU-1", types.StatusDone)
	f.writeDoc(t, "WU-3", types.StatusReady)

	// Dry run only plans.
	plans, err := f.doctor.RemapDuplicates(ctx, true)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 0, f.git.pushes)

	plans, err = f.doctor.RemapDuplicates(ctx, false)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "WU-4", plans[0].NewID)
	assert.Equal(t, 1, f.git.pushes)

	// The published log has the split applied.
	derived, err := f.doctor.Log.Load()
	require.NoError(t, err)
	st, ok := derived.Get("WU-4")
	require.True(t, ok)
	assert.Equal(t, types.StatusInProgress, st.Status)
	st, ok = derived.Get("WU-1")
	require.True(t, ok)
	assert.Equal(t, types.StatusDone, st.Status)

	// A document was authored for the new id.
	doc, err := wudoc.ReadByID(f.doctor.Config.UnitsDirPath(f.root), "WU-4")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, doc.Unit.Status)
	assert.Contains(t, doc.Body, "WU-1")

	// Journaled under the old id.
	entries, err := f.doctor.Store.Journal(ctx, "WU-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KindDuplicateID, entries[0].Kind)
}

func TestRemapDocumentCollisionEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.append(t, types.EventCreate, "WU-100")
	f.writeDoc(t, "WU-100", types.StatusReady)

	unitsDir := f.doctor.Config.UnitsDirPath(f.root)
	require.NoError(t, wudoc.Write(planDoc(unitsDir, "WU-100-copy.md", "WU-100")))

	// Dry run reports the collision without touching anything.
	plans, err := f.doctor.RemapDuplicates(ctx, true)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 0, f.git.pushes)
	_, err = os.Stat(filepath.Join(unitsDir, "WU-100-copy.md"))
	require.NoError(t, err)

	plans, err = f.doctor.RemapDuplicates(ctx, false)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "WU-101", plans[0].NewID)
	assert.Equal(t, 1, plans[0].MovedDocs)

	// The copy moved to the fresh id, filename and id field both.
	_, err = os.Stat(filepath.Join(unitsDir, "WU-100-copy.md"))
	assert.True(t, os.IsNotExist(err))
	doc, err := wudoc.ReadByID(unitsDir, "WU-101")
	require.NoError(t, err)
	assert.Equal(t, "WU-101", doc.Unit.ID)

	// The split unit was logged, and the state is clean afterwards.
	derived, err := f.doctor.Log.Load()
	require.NoError(t, err)
	st, ok := derived.Get("WU-101")
	require.True(t, ok)
	assert.Equal(t, types.StatusReady, st.Status)

	vs, err := f.doctor.CheckAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, vs)
}
