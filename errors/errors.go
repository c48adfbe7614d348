// Package errors provides error handling for hirevox.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"time"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel errors implementing the outreach error taxonomy.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrValidation indicates a malformed ingestion payload or an
	// unparseable phone number. Rejected at the boundary, never fatal.
	ErrValidation = New("validation failed")

	// ErrNotFound indicates a lookup has no data for the input. Recorded
	// as a sentinel value by callers, not surfaced as a failure.
	ErrNotFound = New("not found")

	// ErrTransient indicates a provider failure that may succeed on retry
	// (network timeout, 5xx, rate limited).
	ErrTransient = New("transient provider error")

	// ErrTerminal indicates a provider failure that cannot succeed on
	// retry (invalid number, insufficient balance, permission denied).
	ErrTerminal = New("terminal provider error")

	// ErrConfiguration indicates missing credentials or an unknown
	// template. Fatal to the operation that needs it, not to the process.
	ErrConfiguration = New("configuration error")

	// ErrCancelled indicates a cooperative stop was requested.
	ErrCancelled = New("operation cancelled")

	// ErrConflict indicates a resource conflict, e.g. starting an
	// ingestion session while one is already active.
	ErrConflict = New("resource conflict")
)

// IsValidation checks if an error is or wraps ErrValidation.
func IsValidation(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsTransient checks if an error is or wraps ErrTransient.
func IsTransient(err error) bool {
	return err != nil && Is(err, ErrTransient)
}

// IsTerminal checks if an error is or wraps ErrTerminal.
func IsTerminal(err error) bool {
	return err != nil && Is(err, ErrTerminal)
}

// IsConfiguration checks if an error is or wraps ErrConfiguration.
func IsConfiguration(err error) bool {
	return err != nil && Is(err, ErrConfiguration)
}

// IsConflict checks if an error is or wraps ErrConflict.
func IsConflict(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// NewValidationError creates a validation error with a formatted message.
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// NewConfigurationError creates a configuration error with a formatted message.
func NewConfigurationError(format string, args ...interface{}) error {
	return Wrap(ErrConfiguration, Newf(format, args...).Error())
}

// retryAfterError carries a provider-supplied retry-after hint alongside
// a transient (rate limited) error.
type retryAfterError struct {
	cause error
	after time.Duration
}

func (e *retryAfterError) Error() string { return e.cause.Error() }
func (e *retryAfterError) Unwrap() error { return e.cause }

// WithRetryAfter attaches a provider-supplied retry-after hint to err.
// The result still satisfies errors.Is(err, ErrTransient) when the cause does.
func WithRetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryAfterError{cause: err, after: after}
}

// RetryAfter extracts a retry-after hint from err, if any wrapper in the
// chain carries one.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if As(err, &ra) {
		return ra.after, true
	}
	return 0, false
}
