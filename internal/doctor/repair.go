package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/types"
	"github.com/wucoord/wu/internal/workspace"
	"github.com/wucoord/wu/internal/wudoc"
)

// RepairResult summarizes one repair run.
type RepairResult struct {
	// Applied lists the violations that were repaired
	Applied []Violation

	// Skipped lists violations with no automatic repair, plus
	// duplicate-identifier violations, which have their own command.
	Skipped []Violation

	// DryRun reports whether anything was actually changed
	DryRun bool
}

// defaultPushLimiter paces repair pushes onto the coordination line so
// batch repairs don't hammer the remote. One push per two seconds,
// small burst.
var defaultPushLimiter = rate.NewLimiter(rate.Every(2*time.Second), 3)

func (d *Doctor) limiter() *rate.Limiter {
	if d.PushLimiter != nil {
		return d.PushLimiter
	}
	return defaultPushLimiter
}

// Repair fixes the repairable violations. All file changes that live
// on the coordination line (documents, lock stamps, synthesized
// events) are applied in one repair workspace and published with a
// single push; if the push loses a race the whole repair aborts with
// ErrRepairConflict semantics from the workspace package and nothing
// is published. Workspace removals are local and applied afterwards,
// only once the push has succeeded.
func (d *Doctor) Repair(ctx context.Context, violations []Violation, dryRun bool) (*RepairResult, error) {
	res := &RepairResult{DryRun: dryRun}

	var repoFixes, localFixes []Violation
	for _, v := range violations {
		switch {
		case !v.Repairable, v.Kind == KindDuplicateID:
			res.Skipped = append(res.Skipped, v)
		case v.Kind == KindOrphanWorkspace:
			localFixes = append(localFixes, v)
		default:
			repoFixes = append(repoFixes, v)
		}
	}

	if dryRun {
		res.Applied = append(repoFixes, localFixes...)
		return res, nil
	}

	if len(repoFixes) > 0 {
		tx, err := d.WS.BeginRepair(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Discard(ctx)

		for _, v := range repoFixes {
			if err := d.applyInCheckout(ctx, tx.Dir, v); err != nil {
				return nil, fmt.Errorf("repair %s for %s: %w", v.Kind, v.WU, err)
			}
		}

		if err := d.limiter().Wait(ctx); err != nil {
			return nil, err
		}
		msg := fmt.Sprintf("wu repair: fix %d inconsistencies", len(repoFixes))
		if err := tx.Commit(ctx, msg); err != nil {
			return nil, err
		}
		res.Applied = append(res.Applied, repoFixes...)
	}

	for _, v := range localFixes {
		ws := d.mustWorkspace(v.WU)
		if ws == nil {
			continue
		}
		if err := d.WS.Remove(ctx, ws); err != nil {
			return nil, fmt.Errorf("repair %s for %s: %w", v.Kind, v.WU, err)
		}
		res.Applied = append(res.Applied, v)
	}

	if d.Store != nil {
		for _, v := range res.Applied {
			if err := d.Store.AppendJournal(ctx, v.WU, v.Kind, v.Detail); err != nil {
				return nil, fmt.Errorf("failed to journal repair: %w", err)
			}
		}
	}

	return res, nil
}

func (d *Doctor) mustWorkspace(id string) *workspace.Workspace {
	ws, err := d.WS.Find(id)
	if err != nil || ws == nil {
		return nil
	}
	return ws
}

// applyInCheckout applies one repo-resident fix under the given
// checkout directory. The checkout is the repair worktree, so paths
// are re-derived from the configured layout rooted there.
func (d *Doctor) applyInCheckout(ctx context.Context, checkout string, v Violation) error {
	log := eventlog.New(d.Config.EventsPath(checkout))
	unitsDir := d.Config.UnitsDirPath(checkout)
	locksDir := d.Config.LocksDirPath(checkout)

	derived, err := log.Load()
	if err != nil {
		return err
	}
	st, known := derived.Get(v.WU)

	switch v.Kind {
	case KindMissingDocument:
		if !known {
			return fmt.Errorf("no logged state to rebuild document from")
		}
		lane := st.Lane
		if lane == "" {
			lane = "Unassigned"
		}
		title := st.Title
		if title == "" {
			title = v.WU
		}
		return wudoc.Write(&wudoc.Doc{
			Unit: types.WorkUnit{
				ID:     v.WU,
				Title:  title,
				Lane:   lane,
				Status: st.Status,
				Locked: st.Status.IsTerminal(),
			},
			Path: wudoc.PathFor(unitsDir, v.WU),
		})

	case KindStatusMismatch:
		doc, err := wudoc.ReadByID(unitsDir, v.WU)
		if err != nil {
			return err
		}
		doc.Unit.Status = st.Status
		doc.Unit.Locked = st.Status.IsTerminal()
		if !st.Status.IsTerminal() {
			doc.Unit.CompletedAt = nil
		}
		return wudoc.Write(doc)

	case KindStaleLock:
		return os.Remove(lockPath(locksDir, v.WU))

	case KindMissingLock:
		return writeLockStamp(locksDir, v.WU, time.Now())

	case KindMissingClaim:
		// The workspace proves a claim happened; put the lost event
		// back so the log regains authority.
		ev := types.NewEvent(types.EventClaim, v.WU, time.Now())
		ev.Mode = types.ClaimModeWorkspace
		ev.Note = "synthesized by repair"
		return log.Append(ev)

	case KindZombie:
		ev := types.NewEvent(types.EventRelease, v.WU, time.Now())
		ev.Note = "released by zombie recovery"
		return log.Append(ev)

	default:
		return fmt.Errorf("no repair for %s", v.Kind)
	}
}

func lockPath(locksDir, id string) string {
	return filepath.Join(locksDir, id+".lock")
}

func writeLockStamp(locksDir, id string, now time.Time) error {
	if err := os.MkdirAll(locksDir, 0755); err != nil {
		return err
	}
	stamp := fmt.Sprintf("locked_at: %s\n", now.UTC().Format(time.RFC3339))
	return os.WriteFile(lockPath(locksDir, id), []byte(stamp), 0644)
}
