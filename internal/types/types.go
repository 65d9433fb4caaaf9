// Package types defines the core data model for work-unit coordination:
// the work unit record, the status state machine, lifecycle events, and
// the typed errors shared across the coordination engine.
//
// Everything in this package is pure data and validation, no I/O. The
// state machine in particular must stay side-effect free so that every
// caller (event replay, admission control, repair) can rely on rejection
// being a no-op.
package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Status represents the current lifecycle state of a work unit.
type Status string

const (
	// StatusReady indicates the unit is available to be claimed
	StatusReady Status = "ready"
	// StatusInProgress indicates the unit is claimed and being worked on
	StatusInProgress Status = "in_progress"
	// StatusBlocked indicates the unit is claimed but cannot proceed
	StatusBlocked Status = "blocked"
	// StatusWaiting indicates the unit is checkpointed, awaiting resume or review
	StatusWaiting Status = "waiting"
	// StatusDone indicates the unit is complete. Terminal: no outgoing transitions.
	StatusDone Status = "done"
)

// IsValid checks if the status is one of the defined values.
func (s Status) IsValid() bool {
	switch s {
	case StatusReady, StatusInProgress, StatusBlocked, StatusWaiting, StatusDone:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// ValidTransitions defines the valid state transitions for the work unit
// lifecycle state machine.
//
// State Machine Diagram:
//
//	ready → in_progress → done
//	            ↓↑
//	        blocked ──→ done
//	            (blocked must route back through in_progress to reach ready)
//	        waiting ──→ done
//	            ↓↑ (same routing rule as blocked)
//	        in_progress → ready (release / orphan recovery)
//
// Valid transitions:
//   - ready → in_progress (claim)
//   - in_progress → blocked (block)
//   - in_progress → waiting (checkpoint)
//   - in_progress → done (complete)
//   - in_progress → ready (release or orphan recovery)
//   - blocked → in_progress (unblock)
//   - blocked → done (complete while blocked, e.g. obsoleted)
//   - waiting → in_progress (resume)
//   - waiting → done
//
// blocked → ready and waiting → ready are deliberately absent: a parked
// unit must pass back through in_progress before it can release its lane.
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusReady:
		return []Status{StatusInProgress}
	case StatusInProgress:
		return []Status{StatusBlocked, StatusWaiting, StatusDone, StatusReady}
	case StatusBlocked:
		return []Status{StatusInProgress, StatusDone}
	case StatusWaiting:
		return []Status{StatusInProgress, StatusDone}
	case StatusDone:
		return []Status{} // Terminal state
	default:
		return []Status{}
	}
}

// CanTransitionTo checks if a transition from this status to the target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// ValidateTransition validates a single status transition. It returns a
// *TransitionError describing the offending pair on rejection and has no
// side effects. Empty or unknown values on either side are rejected.
func ValidateTransition(from, to Status) error {
	if from == "" || !from.IsValid() {
		return &TransitionError{From: from, To: to, Reason: fmt.Sprintf("unknown source status %q", string(from))}
	}
	if to == "" || !to.IsValid() {
		return &TransitionError{From: from, To: to, Reason: fmt.Sprintf("unknown target status %q", string(to))}
	}
	if from.IsTerminal() {
		return &TransitionError{From: from, To: to, Reason: "done is a terminal state"}
	}
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to, Reason: "transition not permitted"}
	}
	return nil
}

// ClaimMode describes how a unit was claimed.
type ClaimMode string

const (
	// ClaimModeWorkspace is the default: an isolated worktree per unit
	ClaimModeWorkspace ClaimMode = "workspace"
	// ClaimModeBranchPR claims the main checkout on a dedicated branch (PR flow)
	ClaimModeBranchPR ClaimMode = "branch-pr"
)

// IsValid checks if the claim mode is one of the defined values.
func (m ClaimMode) IsValid() bool {
	return m == ClaimModeWorkspace || m == ClaimModeBranchPR
}

// idPattern matches work unit identifiers: an alphabetic prefix, a dash,
// and an integer, e.g. WU-100.
var idPattern = regexp.MustCompile(`^([A-Za-z]+)-(\d+)$`)

// ValidateID checks that id matches the PREFIX-<integer> identifier format.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("work unit id is required")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid work unit id %q: expected PREFIX-<number>, e.g. WU-42", id)
	}
	return nil
}

// SplitID returns the prefix and numeric component of a work unit id.
func SplitID(id string) (prefix string, num int, err error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, fmt.Errorf("invalid work unit id %q: expected PREFIX-<number>", id)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("invalid work unit id %q: %w", id, err)
	}
	return m[1], n, nil
}

// WorkUnit is the per-id record persisted as a unit document. The
// coordination core reads and writes it but treats the event log, not the
// document, as the source of truth for status.
type WorkUnit struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Lane         string     `json:"lane" yaml:"lane"`
	Status       Status     `json:"status" yaml:"status"`
	CodePaths    []string   `json:"code_paths,omitempty" yaml:"code_paths,omitempty"`
	WorktreePath string     `json:"worktree_path,omitempty" yaml:"worktree_path,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty" yaml:"claimed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	ClaimedMode  ClaimMode  `json:"claimed_mode,omitempty" yaml:"claimed_mode,omitempty"`
	// Branch records the working branch for branch-pr claims; the
	// enforcement guard honors the bypass only while this branch is
	// checked out.
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	// Locked is true only for terminal-done units; the on-disk lock stamp
	// must agree with it (the consistency checker reconciles drift).
	Locked bool `json:"locked,omitempty" yaml:"locked,omitempty"`
}

// Validate checks if the work unit has all required fields with valid values.
func (w *WorkUnit) Validate() error {
	if err := ValidateID(w.ID); err != nil {
		return err
	}
	if strings.TrimSpace(w.Title) == "" {
		return fmt.Errorf("work unit %s: title is required", w.ID)
	}
	if strings.TrimSpace(w.Lane) == "" {
		return fmt.Errorf("work unit %s: lane is required", w.ID)
	}
	if !w.Status.IsValid() {
		return fmt.Errorf("work unit %s: invalid status: %s", w.ID, w.Status)
	}
	if w.ClaimedMode != "" && !w.ClaimedMode.IsValid() {
		return fmt.Errorf("work unit %s: invalid claimed_mode: %s", w.ID, w.ClaimedMode)
	}
	if w.Locked && !w.Status.IsTerminal() {
		return fmt.Errorf("work unit %s: locked requires done status, got %s", w.ID, w.Status)
	}
	return nil
}

// ParseLane splits a lane string into parent and optional sub-lane.
// Lane strings are either "Parent" or "Parent: Sub".
func ParseLane(lane string) (parent, sub string, err error) {
	lane = strings.TrimSpace(lane)
	if lane == "" {
		return "", "", fmt.Errorf("lane is required")
	}
	parts := strings.SplitN(lane, ":", 2)
	parent = strings.TrimSpace(parts[0])
	if parent == "" {
		return "", "", fmt.Errorf("invalid lane %q: empty parent", lane)
	}
	if len(parts) == 2 {
		sub = strings.TrimSpace(parts[1])
		if sub == "" {
			return "", "", fmt.Errorf("invalid lane %q: trailing colon without sub-lane", lane)
		}
	}
	return parent, sub, nil
}

// LaneSlug converts a lane string to its filesystem/branch slug form:
// lowercase, spaces and colons collapsed to single dashes.
// "Docs: API Reference" becomes "docs-api-reference".
func LaneSlug(lane string) string {
	s := strings.ToLower(strings.TrimSpace(lane))
	s = strings.ReplaceAll(s, ":", " ")
	fields := strings.Fields(s)
	return strings.Join(fields, "-")
}
