package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/wudoc"
)

// RemapPlan describes how one duplicated identifier will be untangled.
type RemapPlan struct {
	// OldID is the identifier two units collided on
	OldID string

	// NewID is the fresh identifier the later unit moves to. Equal to
	// OldID when only a document filename was wrong.
	NewID string

	// MovedEvents is how many event lines move to the new id
	MovedEvents int

	// MovedDocs is how many document files move for this plan
	MovedDocs int
}

// docMove relocates one document file during remediation. newID equals
// oldID when the document only needs its canonical filename back.
type docMove struct {
	fromPath string
	oldID    string
	newID    string
}

// PlanDuplicateRemap computes the remappings that would untangle every
// duplicated identifier, without changing anything. Duplicates are
// detected on both surfaces: multiple create events sharing an id in
// the log, and multiple documents claiming the same id on disk.
//
// When an id has multiple create events, the first lifecycle keeps the
// id and everything from the second create onward is treated as a
// distinct unit that collided on it. When multiple documents claim an
// id, the one at the id's canonical filename keeps it and the others
// move to fresh ids. Fresh numbers are picked past every id any
// surface has used, so a remap can never collide with a unit that was
// authored but not yet logged.
func (d *Doctor) PlanDuplicateRemap(ctx context.Context) ([]RemapPlan, error) {
	events, _, err := d.Log.ReadAll()
	if err != nil {
		return nil, err
	}
	unitsDir := d.Config.UnitsDirPath(d.RepoRoot)
	docs, _, err := wudoc.List(unitsDir)
	if err != nil {
		return nil, err
	}
	plans, _, _, err := planRemaps(events, docs, unitsDir, time.Now())
	return plans, err
}

// RemapDuplicates applies the duplicate-identifier remediation. The
// log rewrite and the document renames are published in one repair
// workspace, so a lost push race leaves everything untouched.
func (d *Doctor) RemapDuplicates(ctx context.Context, dryRun bool) ([]RemapPlan, error) {
	plans, err := d.PlanDuplicateRemap(ctx)
	if err != nil || len(plans) == 0 || dryRun {
		return plans, err
	}

	tx, err := d.WS.BeginRepair(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Discard(ctx)

	log := eventlog.New(d.Config.EventsPath(tx.Dir))
	events, _, err := log.ReadAll()
	if err != nil {
		return nil, err
	}
	unitsDir := d.Config.UnitsDirPath(tx.Dir)
	docs, _, err := wudoc.List(unitsDir)
	if err != nil {
		return nil, err
	}

	// Re-plan against the checkout; the live view may be stale.
	plans, rewritten, moves, err := planRemaps(events, docs, unitsDir, time.Now())
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	if err := log.Rewrite(rewritten); err != nil {
		return nil, fmt.Errorf("failed to rewrite event log: %w", err)
	}

	for _, mv := range moves {
		doc, err := wudoc.Read(mv.fromPath)
		if err != nil {
			return nil, err
		}
		if err := wudoc.Rename(doc, unitsDir, mv.newID); err != nil {
			return nil, err
		}
	}

	// Event-only splits have no document to move; author one from the
	// rewritten log so the new unit has all three surfaces.
	derived := eventlog.Fold(rewritten)
	for _, p := range plans {
		if _, err := os.Stat(wudoc.PathFor(unitsDir, p.NewID)); err == nil {
			continue
		}
		st, ok := derived.Get(p.NewID)
		if !ok {
			continue
		}
		title := st.Title
		if title == "" {
			title = p.NewID
		}
		lane := st.Lane
		if lane == "" {
			lane = "Unassigned"
		}
		doc := &wudoc.Doc{
			Unit: types.WorkUnit{
				ID:     p.NewID,
				Title:  title,
				Lane:   lane,
				Status: st.Status,
				Locked: st.Status.IsTerminal(),
			},
			Body: fmt.Sprintf("Split from %s by duplicate-identifier remediation.\n", p.OldID),
			Path: wudoc.PathFor(unitsDir, p.NewID),
		}
		if err := wudoc.Write(doc); err != nil {
			return nil, err
		}
	}

	if err := d.limiter().Wait(ctx); err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("wu repair: remap %d duplicated identifiers", len(plans))
	if err := tx.Commit(ctx, msg); err != nil {
		return nil, err
	}

	if d.Store != nil {
		for _, p := range plans {
			detail := fmt.Sprintf("remapped to %s (%d events, %d documents)", p.NewID, p.MovedEvents, p.MovedDocs)
			if p.NewID == p.OldID {
				detail = "moved document to its canonical filename"
			}
			if err := d.Store.AppendJournal(ctx, p.OldID, KindDuplicateID, detail); err != nil {
				return nil, err
			}
		}
	}
	return plans, nil
}

// planRemaps computes remap plans, the rewritten event slice, and the
// document moves that untangle every duplicate across both surfaces.
func planRemaps(events []types.Event, docs []*wudoc.Doc, unitsDir string, now time.Time) ([]RemapPlan, []types.Event, []docMove, error) {
	maxNum := make(map[string]int)
	note := func(id string) {
		if prefix, num, err := types.SplitID(id); err == nil && num > maxNum[prefix] {
			maxNum[prefix] = num
		}
	}

	creates := make(map[string]int)
	secondCreate := make(map[string]int) // id -> index of its second create
	for i, ev := range events {
		note(ev.WU)
		if ev.Type == types.EventCreate {
			creates[ev.WU]++
			if creates[ev.WU] == 2 {
				secondCreate[ev.WU] = i
			}
		}
	}

	byID := make(map[string][]*wudoc.Doc)
	for _, doc := range docs {
		note(doc.Unit.ID)
		note(strings.TrimSuffix(filepath.Base(doc.Path), ".md"))
		byID[doc.Unit.ID] = append(byID[doc.Unit.ID], doc)
	}

	dupIDs := make(map[string]bool)
	for id := range secondCreate {
		dupIDs[id] = true
	}
	for id, group := range byID {
		if _, _, err := types.SplitID(id); err != nil {
			// A document with an unusable id is reported by the checker,
			// not remapped.
			continue
		}
		if len(group) > 1 || group[0].Path != wudoc.PathFor(unitsDir, id) {
			dupIDs[id] = true
		}
	}
	if len(dupIDs) == 0 {
		return nil, events, nil, nil
	}

	ids := make([]string, 0, len(dupIDs))
	for id := range dupIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	alloc := func(prefix string) string {
		maxNum[prefix]++
		return fmt.Sprintf("%s-%d", prefix, maxNum[prefix])
	}

	newEventID := make(map[string]string)
	var (
		plans       []RemapPlan
		moves       []docMove
		synthesized []types.Event
	)
	for _, id := range ids {
		prefix, _, err := types.SplitID(id)
		if err != nil {
			return nil, nil, nil, err
		}
		canonicalPath := wudoc.PathFor(unitsDir, id)
		group := byID[id]

		// The document at the canonical filename keeps the id; wudoc.List
		// sorts by filename, so the fallback is deterministic.
		var canonical *wudoc.Doc
		for _, doc := range group {
			if doc.Path == canonicalPath {
				canonical = doc
				break
			}
		}
		if canonical == nil && len(group) > 0 {
			canonical = group[0]
		}
		var extras []*wudoc.Doc
		for _, doc := range group {
			if doc != canonical {
				extras = append(extras, doc)
			}
		}

		_, eventDup := secondCreate[id]
		if canonical != nil && canonical.Path != canonicalPath {
			moves = append(moves, docMove{fromPath: canonical.Path, oldID: id, newID: id})
			if !eventDup && len(extras) == 0 {
				plans = append(plans, RemapPlan{OldID: id, NewID: id, MovedDocs: 1})
			}
		}

		if eventDup {
			nid := alloc(prefix)
			newEventID[id] = nid
			p := RemapPlan{OldID: id, NewID: nid}
			if len(extras) > 0 {
				// The later document belongs to the later lifecycle.
				moves = append(moves, docMove{fromPath: extras[0].Path, oldID: id, newID: nid})
				extras = extras[1:]
				p.MovedDocs = 1
			}
			plans = append(plans, p)
		}
		for _, ex := range extras {
			nid := alloc(prefix)
			moves = append(moves, docMove{fromPath: ex.Path, oldID: id, newID: nid})
			ev := types.NewEvent(types.EventCreate, nid, now)
			ev.Lane = ex.Unit.Lane
			if ev.Lane == "" {
				ev.Lane = "Unassigned"
			}
			ev.Title = ex.Unit.Title
			if ev.Title == "" {
				ev.Title = nid
			}
			ev.Note = "synthesized by duplicate-identifier remediation"
			synthesized = append(synthesized, ev)
			plans = append(plans, RemapPlan{OldID: id, NewID: nid, MovedDocs: 1})
		}
	}

	rewritten := make([]types.Event, 0, len(events)+len(synthesized))
	for i, ev := range events {
		at, dup := secondCreate[ev.WU]
		if dup && i >= at {
			ev.WU = newEventID[ev.WU]
			for j := range plans {
				if plans[j].NewID == ev.WU {
					plans[j].MovedEvents++
				}
			}
		}
		rewritten = append(rewritten, ev)
	}
	rewritten = append(rewritten, synthesized...)

	// A third create for the same id would need another pass; rerun
	// until clean.
	return plans, rewritten, moves, nil
}
