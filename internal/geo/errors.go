package geo

import (
	"errors"
	"fmt"
)

// ErrLocationUnavailable matches every *LocationError via errors.Is.
var ErrLocationUnavailable = errors.New("location unavailable")

// ErrorKind classifies why a location could not be obtained.
type ErrorKind string

const (
	PermissionDenied ErrorKind = "permission_denied"
	Timeout          ErrorKind = "timeout"
	Unavailable      ErrorKind = "unavailable"
)

// LocationError is returned when no fix could be obtained. Reason is meant
// for humans.
type LocationError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("location %s: %s", e.Kind, e.Reason)
}

func (e *LocationError) Unwrap() error { return e.Err }

func (e *LocationError) Is(target error) bool {
	return target == ErrLocationUnavailable
}

func newError(kind ErrorKind, reason string, err error) *LocationError {
	return &LocationError{Kind: kind, Reason: reason, Err: err}
}
