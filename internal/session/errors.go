package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Manager lookups for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// ErrNoTerminal is returned by I/O operations when no terminal handle is
// attached (session never started or already stopped).
var ErrNoTerminal = errors.New("session has no active terminal")

// StateError reports an operation rejected by a lifecycle guard. It is a
// precondition failure: the session state is unchanged and the operation
// is never retried automatically.
type StateError struct {
	Op     string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s session in status %q", e.Op, e.Status)
}

// IsStateError reports whether err is a lifecycle guard rejection.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
