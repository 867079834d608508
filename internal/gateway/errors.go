package gateway

import (
	"errors"
	"fmt"
)

// Common errors returned by gateway operations.
//
// These errors can be checked using errors.Is() through a *RemoteError:
//
//	if errors.Is(err, gateway.ErrNotFound) {
//	    // The page is already gone
//	}
var (
	// ErrNotFound is returned when the target page does not exist.
	ErrNotFound = errors.New("page not found")

	// ErrUnauthorized is returned when the credentials are missing,
	// invalid, or lack permission for the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when the wiki rejects a write because the
	// page changed underneath it (for example a stale version number).
	ErrConflict = errors.New("conflicting page version")

	// ErrCommandFailed is returned when the external tool exits non-zero.
	ErrCommandFailed = errors.New("external command failed")

	// ErrBadResponse is returned when the backend answers with something
	// that cannot be interpreted.
	ErrBadResponse = errors.New("unexpected response")

	// ErrNotRegistered is returned by the factory for an unknown backend.
	ErrNotRegistered = errors.New("gateway type not registered")
)

// Operation names used in RemoteError.Op.
const (
	OpCreateOrUpdate = "create_or_update_child"
	OpUpdateByID     = "update_by_id"
	OpListChildren   = "list_children"
	OpDelete         = "delete"
)

// RemoteError describes a failed gateway call.
type RemoteError struct {
	// Op is the gateway operation that failed
	Op string

	// Target is the page id or title the operation addressed
	Target string

	// Status is the HTTP status code or process exit code, if any
	Status int

	// Err is the underlying cause
	Err error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %q: status %d: %v", e.Op, e.Target, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError builds a RemoteError.
func NewRemoteError(op, target string, status int, err error) *RemoteError {
	return &RemoteError{Op: op, Target: target, Status: status, Err: err}
}

// IsNotFound returns true if the error reports a missing page.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsAuth returns true if the error requires fixing credentials before any
// further call can succeed.
func IsAuth(err error) bool {
	return err != nil && errors.Is(err, ErrUnauthorized)
}
