package eventlog

import (
	"fmt"
	"time"

	"github.com/wucoord/wu/internal/types"
)

// UnitState is the per-unit projection of the event log.
type UnitState struct {
	Status      types.Status
	Lane        string
	Title       string
	LastEventAt time.Time
}

// ReplayWarning records a problem noticed while folding the log: a
// malformed line, an event for an unknown unit, or a historically invalid
// transition. Warnings never abort the fold.
type ReplayWarning struct {
	Line    int
	WU      string
	Message string
}

func (w ReplayWarning) String() string {
	if w.WU != "" {
		return fmt.Sprintf("line %d (%s): %s", w.Line, w.WU, w.Message)
	}
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

// DerivedState is the live view of current status per unit, computed by
// folding the event log. Folding the same byte-for-byte log twice yields
// an identical DerivedState; nothing mutates it except a rebuild.
type DerivedState struct {
	units    map[string]*UnitState
	order    []string // first-seen order, for deterministic iteration
	warnings []ReplayWarning
}

// Fold replays events in order into a DerivedState. State machine
// validation runs on every transition; violations are recorded as
// warnings and the event's resulting status is still applied, because the
// log, not the validator, is the source of truth for what happened.
func Fold(events []types.Event) *DerivedState {
	d := &DerivedState{units: make(map[string]*UnitState)}
	for i := range events {
		d.apply(i+1, &events[i])
	}
	return d
}

func (d *DerivedState) apply(line int, ev *types.Event) {
	next, ok := ev.Type.StatusAfter()
	if !ok {
		d.warnings = append(d.warnings, ReplayWarning{Line: line, WU: ev.WU, Message: fmt.Sprintf("unknown event type %q", string(ev.Type))})
		return
	}

	st, exists := d.units[ev.WU]
	if !exists {
		if ev.Type != types.EventCreate {
			d.warnings = append(d.warnings, ReplayWarning{Line: line, WU: ev.WU, Message: fmt.Sprintf("%s event before create", ev.Type)})
		}
		st = &UnitState{}
		d.units[ev.WU] = st
		d.order = append(d.order, ev.WU)
	} else if err := types.ValidateTransition(st.Status, next); err != nil {
		d.warnings = append(d.warnings, ReplayWarning{Line: line, WU: ev.WU, Message: err.Error()})
	}

	st.Status = next
	st.LastEventAt = ev.Timestamp
	if ev.Lane != "" {
		st.Lane = ev.Lane
	}
	if ev.Title != "" {
		st.Title = ev.Title
	}
}

// Load reads the full log and folds it, merging parse warnings with
// replay warnings.
func (l *Log) Load() (*DerivedState, error) {
	events, parseWarnings, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	d := Fold(events)
	if len(parseWarnings) > 0 {
		d.warnings = append(parseWarnings, d.warnings...)
	}
	return d, nil
}

// Get returns the current state of one unit.
func (d *DerivedState) Get(id string) (UnitState, bool) {
	st, ok := d.units[id]
	if !ok {
		return UnitState{}, false
	}
	return *st, true
}

// GetByStatus returns the ids currently in the given status, in
// first-seen order.
func (d *DerivedState) GetByStatus(status types.Status) []string {
	var ids []string
	for _, id := range d.order {
		if d.units[id].Status == status {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetAll returns a copy of the full projection keyed by unit id.
func (d *DerivedState) GetAll() map[string]UnitState {
	out := make(map[string]UnitState, len(d.units))
	for id, st := range d.units {
		out[id] = *st
	}
	return out
}

// IDs returns every known unit id in first-seen order.
func (d *DerivedState) IDs() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Warnings returns replay and parse warnings accumulated during Load.
func (d *DerivedState) Warnings() []ReplayWarning {
	return d.warnings
}
