package types

import (
	"fmt"
	"time"
)

// EventType represents the type of a lifecycle event in the append-only log.
type EventType string

const (
	// EventCreate indicates a work unit was authored (initial status ready)
	EventCreate EventType = "create"
	// EventClaim indicates a unit was claimed for work
	EventClaim EventType = "claim"
	// EventBlock indicates an in-progress unit hit a blocker
	EventBlock EventType = "block"
	// EventUnblock indicates a blocked unit resumed work
	EventUnblock EventType = "unblock"
	// EventCheckpoint indicates progress was saved and the unit parked as waiting
	EventCheckpoint EventType = "checkpoint"
	// EventComplete indicates a unit reached its terminal done state
	EventComplete EventType = "complete"
	// EventRelease indicates a claim was given up without completing
	EventRelease EventType = "release"
)

// IsValid checks if the event type is one of the defined values.
func (t EventType) IsValid() bool {
	switch t {
	case EventCreate, EventClaim, EventBlock, EventUnblock, EventCheckpoint, EventComplete, EventRelease:
		return true
	}
	return false
}

// StatusAfter returns the status a work unit holds after an event of this
// type is applied. The mapping is total over valid event types.
func (t EventType) StatusAfter() (Status, bool) {
	switch t {
	case EventCreate:
		return StatusReady, true
	case EventClaim:
		return StatusInProgress, true
	case EventBlock:
		return StatusBlocked, true
	case EventUnblock:
		return StatusInProgress, true
	case EventCheckpoint:
		return StatusWaiting, true
	case EventComplete:
		return StatusDone, true
	case EventRelease:
		return StatusReady, true
	default:
		return "", false
	}
}

// Event is one immutable record in the append-only lifecycle log.
// Logical time is file append order; Timestamp is informational and ties
// are broken by append order, never by re-sorting.
type Event struct {
	Type      EventType `json:"type"`
	WU        string    `json:"wu"`
	Lane      string    `json:"lane,omitempty"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Mode records how a claim was made (workspace or branch-pr)
	Mode ClaimMode `json:"mode,omitempty"`
	// Branch records the working branch for branch-pr claims
	Branch string `json:"branch,omitempty"`
	// Actor identifies who appended the event (agent name, user, or "repair")
	Actor string `json:"actor,omitempty"`
	// Note carries free-form context (block reason, checkpoint summary)
	Note string `json:"note,omitempty"`
}

// Validate checks the event shape before it is appended to the log.
func (e *Event) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type: %q", string(e.Type))
	}
	if err := ValidateID(e.WU); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("invalid event for %s: timestamp is required", e.WU)
	}
	if e.Mode != "" && !e.Mode.IsValid() {
		return fmt.Errorf("invalid event for %s: unknown claim mode %q", e.WU, string(e.Mode))
	}
	return nil
}

// NewEvent constructs a lifecycle event with the given type and unit id,
// stamped with the supplied clock time.
func NewEvent(t EventType, wu string, now time.Time) Event {
	return Event{Type: t, WU: wu, Timestamp: now.UTC()}
}
