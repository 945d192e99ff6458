package application

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshInFlight is returned when a refresh is requested while a
	// previous one is still running.
	ErrRefreshInFlight = errors.New("application: refresh already in flight")
	// ErrSessionChanged is returned when a refresh completes after the
	// session it started under was replaced or logged out.
	ErrSessionChanged = errors.New("application: session changed during refresh")
	// ErrNoOrganization is returned when the active user carries no
	// organization to fetch lessons for.
	ErrNoOrganization = errors.New("application: active user has no organization")
)

// Refresh step names used in SyncError.
const (
	StepToken     = "token"
	StepFetch     = "fetch"
	StepNormalize = "normalize"
	StepStore     = "store"
)

// SyncError reports which refresh step failed. The cache is left untouched
// whenever a SyncError is returned.
type SyncError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("refresh failed during %s: %v", e.Step, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}
