// Package doctor checks the three coordination surfaces against each
// other and repairs drift. The event log is authoritative: unit
// documents and on-disk markers are projections, and every repair
// rewrites projections to match the log, never the log to match a
// projection. The two exceptions are duplicate-identifier remediation
// and archival, which rewrite the log itself under their own rules.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wucoord/wu/internal/config"
	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/storage"
	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/workspace"
	"github.com/wucoord/wu/internal/wudoc"
)

// Violation kinds.
const (
	KindStatusMismatch  = "status-mismatch"
	KindMissingDocument = "missing-document"
	KindStaleLock       = "stale-lock"
	KindMissingLock     = "missing-lock"
	KindOrphanWorkspace = "orphaned-workspace"
	KindMissingClaim    = "missing-claim"
	KindZombie          = "zombie"
	KindDuplicateID     = "duplicate-identifier"
	KindUnparsableDoc   = "unparsable-document"
)

// Violation is one detected inconsistency.
type Violation struct {
	// Kind is one of the Kind* constants
	Kind string

	// WU is the affected unit id, empty for file-level problems
	WU string

	// Detail is a human-readable description
	Detail string

	// Repairable reports whether an automatic repair exists
	Repairable bool
}

func (v Violation) String() string {
	if v.WU == "" {
		return fmt.Sprintf("[%s] %s", v.Kind, v.Detail)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Kind, v.WU, v.Detail)
}

// Doctor checks and repairs coordination state for one repository.
type Doctor struct {
	RepoRoot string
	Config   config.Config
	Log      *eventlog.Log
	WS       *workspace.Manager
	Store    *storage.Store

	// PushLimiter overrides the default pacing of repair pushes
	PushLimiter *rate.Limiter
}

// checkParallelism bounds the per-unit check fan-out.
const checkParallelism = 8

// snapshot is everything a per-unit check needs, gathered once.
type snapshot struct {
	derived    *eventlog.DerivedState
	docs       map[string]*wudoc.Doc
	docErrors  []string
	locks      map[string]bool
	workspaces map[string]*workspace.Workspace
	duplicates map[string]int    // create-event count per id, when > 1
	docDupes   map[string]int    // document count per id, when > 1
	misnamed   map[string]string // id -> path of a lone doc at the wrong filename
}

func (d *Doctor) gather(ctx context.Context) (*snapshot, error) {
	events, _, err := d.Log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	snap := &snapshot{
		derived:    eventlog.Fold(events),
		docs:       make(map[string]*wudoc.Doc),
		locks:      make(map[string]bool),
		workspaces: make(map[string]*workspace.Workspace),
		duplicates: make(map[string]int),
		docDupes:   make(map[string]int),
		misnamed:   make(map[string]string),
	}

	creates := make(map[string]int)
	for _, ev := range events {
		if ev.Type == types.EventCreate {
			creates[ev.WU]++
		}
	}
	for id, n := range creates {
		if n > 1 {
			snap.duplicates[id] = n
		}
	}

	unitsDir := d.Config.UnitsDirPath(d.RepoRoot)
	docs, problems, err := wudoc.List(unitsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit documents: %w", err)
	}
	byID := make(map[string][]*wudoc.Doc)
	for _, doc := range docs {
		byID[doc.Unit.ID] = append(byID[doc.Unit.ID], doc)
	}
	for id, group := range byID {
		// The document at the id's canonical filename wins; extra
		// documents claiming the id are duplicates.
		canonical := group[0]
		for _, doc := range group {
			if doc.Path == wudoc.PathFor(unitsDir, id) {
				canonical = doc
				break
			}
		}
		snap.docs[id] = canonical
		if len(group) > 1 {
			snap.docDupes[id] = len(group)
		} else if canonical.Path != wudoc.PathFor(unitsDir, id) {
			snap.misnamed[id] = canonical.Path
		}
	}
	snap.docErrors = problems

	entries, err := os.ReadDir(d.Config.LocksDirPath(d.RepoRoot))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read locks dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if len(name) > 5 && name[len(name)-5:] == ".lock" {
			snap.locks[name[:len(name)-5]] = true
		}
	}

	wss, err := d.WS.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	for _, ws := range wss {
		snap.workspaces[ws.WU] = ws
	}

	return snap, nil
}

// checkUnit detects violations for one unit against a gathered snapshot.
func (d *Doctor) checkUnit(snap *snapshot, id string) []Violation {
	var out []Violation

	st, known := snap.derived.Get(id)
	doc := snap.docs[id]
	ws := snap.workspaces[id]
	locked := snap.locks[id]

	if n, dup := snap.duplicates[id]; dup {
		out = append(out, Violation{
			Kind: KindDuplicateID, WU: id, Repairable: true,
			Detail: fmt.Sprintf("%d create events share this id", n),
		})
	}
	if n, dup := snap.docDupes[id]; dup {
		out = append(out, Violation{
			Kind: KindDuplicateID, WU: id, Repairable: true,
			Detail: fmt.Sprintf("%d documents claim this id", n),
		})
	} else if path, ok := snap.misnamed[id]; ok {
		out = append(out, Violation{
			Kind: KindDuplicateID, WU: id, Repairable: true,
			Detail: fmt.Sprintf("document %s is not this id's canonical file", filepath.Base(path)),
		})
	}

	if !known {
		// Projections exist for a unit the log never saw.
		if doc != nil {
			out = append(out, Violation{
				Kind: KindStatusMismatch, WU: id, Repairable: false,
				Detail: "unit document exists but the event log has no history for it",
			})
		}
		if ws != nil {
			out = append(out, Violation{
				Kind: KindOrphanWorkspace, WU: id, Repairable: true,
				Detail: fmt.Sprintf("workspace %s belongs to no logged unit", ws.Path),
			})
		}
		if locked {
			out = append(out, Violation{
				Kind: KindStaleLock, WU: id, Repairable: true,
				Detail: "lock stamp belongs to no logged unit",
			})
		}
		return out
	}

	if doc == nil {
		out = append(out, Violation{
			Kind: KindMissingDocument, WU: id, Repairable: true,
			Detail: fmt.Sprintf("log says %s but no unit document exists", st.Status),
		})
	} else if doc.Unit.Status != st.Status {
		out = append(out, Violation{
			Kind: KindStatusMismatch, WU: id, Repairable: true,
			Detail: fmt.Sprintf("document says %s, log says %s", doc.Unit.Status, st.Status),
		})
	}

	// Lock stamps exist exactly for done units.
	if locked && !st.Status.IsTerminal() {
		out = append(out, Violation{
			Kind: KindStaleLock, WU: id, Repairable: true,
			Detail: fmt.Sprintf("lock stamp present but unit is %s", st.Status),
		})
	}
	if !locked && st.Status.IsTerminal() {
		out = append(out, Violation{
			Kind: KindMissingLock, WU: id, Repairable: true,
			Detail: "unit is done but has no lock stamp",
		})
	}

	// Workspaces exist exactly for in-flight workspace-mode claims.
	inFlight := st.Status == types.StatusInProgress ||
		st.Status == types.StatusBlocked ||
		st.Status == types.StatusWaiting
	branchPR := doc != nil && doc.Unit.ClaimedMode == types.ClaimModeBranchPR

	if ws != nil && !inFlight {
		kind := KindOrphanWorkspace
		detail := fmt.Sprintf("workspace %s exists but unit is %s", ws.Path, st.Status)
		if st.Status == types.StatusReady {
			// A workspace for a ready unit usually means the claim
			// event was lost, not that the workspace is junk.
			kind = KindMissingClaim
			detail = fmt.Sprintf("workspace %s exists but the log never recorded a claim", ws.Path)
		}
		out = append(out, Violation{Kind: kind, WU: id, Repairable: true, Detail: detail})
	}
	if ws == nil && st.Status == types.StatusInProgress && !branchPR {
		out = append(out, Violation{
			Kind: KindZombie, WU: id, Repairable: true,
			Detail: "log says in_progress but the claim workspace is gone",
		})
	}

	return out
}

// Check detects violations for a single unit.
func (d *Doctor) Check(ctx context.Context, id string) ([]Violation, error) {
	if err := types.ValidateID(id); err != nil {
		return nil, err
	}
	snap, err := d.gather(ctx)
	if err != nil {
		return nil, err
	}
	return d.checkUnit(snap, id), nil
}

// CheckAll detects violations across every unit any surface knows
// about. Results are sorted by unit id, then kind.
func (d *Doctor) CheckAll(ctx context.Context) ([]Violation, error) {
	snap, err := d.gather(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	for _, id := range snap.derived.IDs() {
		ids[id] = true
	}
	for id := range snap.docs {
		ids[id] = true
	}
	for id := range snap.workspaces {
		ids[id] = true
	}
	for id := range snap.locks {
		ids[id] = true
	}

	var (
		mu  sync.Mutex
		all []Violation
	)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(checkParallelism)
	for id := range ids {
		g.Go(func() error {
			vs := d.checkUnit(snap, id)
			if len(vs) == 0 {
				return nil
			}
			mu.Lock()
			all = append(all, vs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range snap.docErrors {
		all = append(all, Violation{Kind: KindUnparsableDoc, Detail: p})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].WU != all[j].WU {
			return all[i].WU < all[j].WU
		}
		return all[i].Kind < all[j].Kind
	})
	return all, nil
}

// ErrManualIntervention is returned when automatic handling is
// exhausted and an operator has to look.
var ErrManualIntervention = errors.New("manual intervention required")
