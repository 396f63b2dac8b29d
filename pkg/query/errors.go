package query

import (
	"errors"
	"fmt"

	"github.com/notearc/nbq/pkg/browser"
	"github.com/notearc/nbq/pkg/detector"
)

// ValidationError rejects a request before any browser work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Error kinds as recorded in metrics and history.
const (
	KindAuthExpired    = "auth_expired"
	KindBrowserCrashed = "browser_crashed"
	KindTimeout        = "timeout"
	KindValidation     = "validation"
	KindBrowser        = "browser"
)

// Classify maps an error to its recorded kind.
func Classify(err error) string {
	var vErr *ValidationError
	var tErr *detector.TimeoutError
	switch {
	case errors.As(err, &vErr):
		return KindValidation
	case errors.As(err, &tErr):
		return KindTimeout
	case errors.Is(err, browser.ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, browser.ErrCrashed):
		return KindBrowserCrashed
	default:
		return KindBrowser
	}
}

// recoverable reports whether a pooled failure is worth one direct retry.
// Expired auth and crashed contexts indicate corrupted shared state that a
// fresh throwaway session sidesteps; timeouts and validation failures are
// terminal because retrying repeats the same outcome, slower.
func recoverable(err error) bool {
	return errors.Is(err, browser.ErrAuthExpired) || errors.Is(err, browser.ErrCrashed)
}
