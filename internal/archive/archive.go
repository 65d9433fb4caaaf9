// Package archive moves long-finished work units out of the live event
// log into monthly bucket files, keeping replay fast without losing
// history.
package archive

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/wucoord/wu/internal/eventlog"
	"github.com/wucoord/wu/internal/types"
)

// Options configure one archival run.
type Options struct {
	// ArchiveDir is where monthly bucket files are written
	ArchiveDir string

	// After is the age threshold. Units whose last event is older than
	// this are eligible.
	After time.Duration

	// Now anchors age computation, normally time.Now
	Now time.Time

	// DryRun computes the result without touching any file
	DryRun bool
}

// Result summarizes an archival run.
type Result struct {
	// ArchivedWUs are the unit ids whose events were moved out,
	// sorted.
	ArchivedWUs []string

	// ArchivedEvents is the number of event lines moved
	ArchivedEvents int

	// RetainedActive counts units kept because they are not terminal,
	// regardless of age.
	RetainedActive int

	// RetainedRecent counts terminal units kept because their last
	// event is within the threshold.
	RetainedRecent int

	// Buckets maps bucket file name to the number of events appended
	// to it.
	Buckets map[string]int

	// DryRun reports whether the run was a simulation
	DryRun bool
}

// BucketName returns the monthly archive file a unit belongs to, based
// on the UTC time of its last event.
func BucketName(lastEvent time.Time) string {
	u := lastEvent.UTC()
	return fmt.Sprintf("%04d-%02d.jsonl", u.Year(), int(u.Month()))
}

// Run archives eligible units from the live log. A unit is eligible
// only when every condition holds: its derived status is terminal and
// its last event is older than opts.After. All events of an eligible
// unit move together; a unit's history is never split between the live
// log and the archive.
func Run(log *eventlog.Log, opts Options) (*Result, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	cutoff := opts.Now.Add(-opts.After)

	events, _, err := log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	derived := eventlog.Fold(events)

	lastEvent := make(map[string]time.Time)
	for _, ev := range events {
		if ev.Timestamp.After(lastEvent[ev.WU]) {
			lastEvent[ev.WU] = ev.Timestamp
		}
	}

	res := &Result{Buckets: make(map[string]int), DryRun: opts.DryRun}
	archive := make(map[string]bool)
	for _, id := range derived.IDs() {
		st, _ := derived.Get(id)
		if !st.Status.IsTerminal() {
			res.RetainedActive++
			continue
		}
		if !lastEvent[id].Before(cutoff) {
			res.RetainedRecent++
			continue
		}
		archive[id] = true
		res.ArchivedWUs = append(res.ArchivedWUs, id)
	}
	sort.Strings(res.ArchivedWUs)

	if len(archive) == 0 {
		return res, nil
	}

	// Partition the log. A unit's bucket is determined by its last
	// event so one unit always lands in exactly one bucket file.
	var kept []types.Event
	byBucket := make(map[string][]types.Event)
	for _, ev := range events {
		if !archive[ev.WU] {
			kept = append(kept, ev)
			continue
		}
		bucket := BucketName(lastEvent[ev.WU])
		byBucket[bucket] = append(byBucket[bucket], ev)
		res.Buckets[bucket]++
		res.ArchivedEvents++
	}

	if opts.DryRun {
		return res, nil
	}

	// Append to buckets first. If the bucket write succeeds but the
	// live-log rewrite fails, events are duplicated, not lost, and a
	// rerun converges.
	for bucket, evs := range byBucket {
		bl := eventlog.New(filepath.Join(opts.ArchiveDir, bucket))
		if err := bl.AppendAll(evs); err != nil {
			return nil, fmt.Errorf("failed to write archive bucket %s: %w", bucket, err)
		}
	}

	if err := log.Rewrite(kept); err != nil {
		return nil, fmt.Errorf("failed to rewrite live log: %w", err)
	}

	return res, nil
}
