// Package fault defines the error kinds every scheduling operation reports.
//
// Four kinds are visible to callers (validation, forbidden, not found,
// conflict). GatewayError is internal: notification failures are logged and
// never returned from the operation that triggered them. Any other error is an
// unexpected storage or runtime fault and is reported as an internal error.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with %w to add context.
var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
)

// ValidationError reports malformed input with field-level detail.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// NotFound wraps ErrNotFound naming the resource kind only, never whether the
// record exists outside the caller's scope.
func NotFound(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrNotFound)
}

// Conflict wraps ErrConflict with a reason.
func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

// GatewayError records a failed notification send.
type GatewayError struct {
	Provider string
	To       string
	Err      error
}

// Error implements error.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("notification via %s to %s failed: %v", e.Provider, e.To, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *GatewayError) Unwrap() error { return e.Err }

// Kind classifies err into one of the caller-visible kinds, or "internal".
func Kind(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
