package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound      = errors.New("element not found")
	ErrNoItems       = errors.New("no items rendered")
	ErrTimeout       = errors.New("wait timed out")
	ErrSessionClosed = errors.New("browser session closed")
	ErrEmptyBatch    = errors.New("route batch has no trips")
)

// NavigationError wraps errors that occur while opening a page.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// PersistError wraps errors returned by a sink while storing a route batch.
type PersistError struct {
	Backend string
	Route   string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist error (%s) for route %q: %v", e.Backend, e.Route, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
