// Package kerrors contains the typed errors returned by ingest and query
// operations. gRPC and HTTP interceptors recognize these types and map
// them to the wire-level codes named in the external interface contract;
// call sites elsewhere should return one of these (wrapped with
// github.com/pkg/errors where a stack trace is useful) rather than ad hoc
// fmt.Errorf values, so the mapping stays total.
package kerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound indicates the referenced resource does not exist (or is
// soft-deleted, which reads as not existing).
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (e *ErrNotFound) Error() string {
	s := fmt.Sprintf("%s %q not found", e.Type, e.Value)
	if e.Message != "" {
		s += "; " + e.Message
	}
	return s
}

// ErrAlreadyExists indicates a create operation collided with an existing
// resource under a uniqueness constraint the caller did not satisfy.
type ErrAlreadyExists struct {
	Type    string
	Value   string
	Message string
}

func (e *ErrAlreadyExists) Error() string {
	s := fmt.Sprintf("%s %q already exists", e.Type, e.Value)
	if e.Message != "" {
		s += "; " + e.Message
	}
	return s
}

// ErrInvalidArgument indicates a required-field or hard-limit validation
// failure. It is always a fatal, non-retryable error from the caller's
// perspective.
type ErrInvalidArgument struct {
	Name    string
	Value   interface{}
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("invalid value %v for %q", e.Value, e.Name)
	}
	return fmt.Sprintf("invalid value %v for %q: %s", e.Value, e.Name, e.Message)
}

// ErrFailedPrecondition indicates the run is not in the state required for
// the requested transition (terminal run mutation, resume without a valid
// token, crashed run being logged to, etc).
type ErrFailedPrecondition struct {
	Message string
}

func (e *ErrFailedPrecondition) Error() string { return e.Message }

// ErrUnavailable indicates a store outage; the caller is expected to spool
// and retry, never retried silently by the server itself.
type ErrUnavailable struct {
	Message string
}

func (e *ErrUnavailable) Error() string { return e.Message }

// ErrResourceExhausted indicates a hard cardinality or size cap was
// breached such that the whole request (not just individual points) must
// be rejected.
type ErrResourceExhausted struct {
	Message string
}

func (e *ErrResourceExhausted) Error() string { return e.Message }

// ErrPermissionDenied indicates the caller's credentials do not authorize
// the requested action.
type ErrPermissionDenied struct {
	Message string
}

func (e *ErrPermissionDenied) Error() string { return e.Message }

// ErrUnauthenticated indicates the caller presented no, or invalid,
// credentials.
type ErrUnauthenticated struct {
	Message string
}

func (e *ErrUnauthenticated) Error() string { return e.Message }

// Cause unwraps wrapped errors (github.com/pkg/errors style) to find the
// typed cause, falling back to the error itself.
func Cause(err error) error {
	return errors.Cause(err)
}
