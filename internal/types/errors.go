package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel wrapped by lookups for missing work units
// or missing unit documents.
var ErrNotFound = errors.New("not found")

// TransitionError describes a rejected lifecycle transition. It names the
// offending pair so callers can surface exactly what was attempted.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %q → %q: %s", string(e.From), string(e.To), e.Reason)
}

// IsTerminalRejection reports whether the transition was rejected because
// the source status is terminal.
func (e *TransitionError) IsTerminalRejection() bool {
	return e.From.IsTerminal()
}
