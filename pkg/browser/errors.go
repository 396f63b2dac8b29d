package browser

import (
	"errors"
	"fmt"
)

// Sentinel failure classes for the query pipeline. The orchestrator uses
// these to decide between retrying on a fresh session and surfacing the
// failure to the caller.
var (
	// ErrAuthExpired means the session's credentials no longer work against
	// the remote application.
	ErrAuthExpired = errors.New("browser: authentication expired")

	// ErrCrashed means the browser context or page became unusable after the
	// session had already been ready.
	ErrCrashed = errors.New("browser: context crashed")

	// ErrNotReady means the notebook UI never presented a usable query input.
	ErrNotReady = errors.New("browser: notebook UI not ready")

	// ErrClosed means the session was closed and cannot be used again.
	ErrClosed = errors.New("browser: session closed")
)

// Error wraps initialization, navigation and selector failures with the
// operation that produced them.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("browser: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}
