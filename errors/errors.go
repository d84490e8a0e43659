// Package errors provides error handling for OPTIX.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
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
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Errorf       = crdb.Errorf
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
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapOnce    = crdb.UnwrapOnce
	UnwrapAll     = crdb.UnwrapAll
	CombineErrors = crdb.CombineErrors

	// GetReportableStackTrace extracts the stack trace from an error for reporting
	GetReportableStackTrace = crdb.GetReportableStackTrace
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors for the worker pipeline and query surface.
// Use these with errors.Is() for type-safe error checking and wrap them
// with errors.Wrap() to add context while preserving the kind.
var (
	// ErrNotFound indicates the requested resource does not exist for this user
	ErrNotFound = New("not found")

	// ErrNotAuthorized indicates the caller referenced a resource they do not
	// own. The HTTP layer surfaces this as not-found to avoid existence leaks.
	ErrNotAuthorized = New("not authorized")

	// ErrInvalidInput indicates a malformed request parameter or payload
	ErrInvalidInput = New("invalid input")

	// ErrRepoUnavailable indicates a clone or fetch failure; fatal for the job
	ErrRepoUnavailable = New("repository unavailable")

	// ErrRepoNotCached indicates an on-demand read (blame) against a
	// repository that has never been mined into the local cache
	ErrRepoNotCached = New("repository not yet cloned")

	// ErrIndexMalformed indicates the uploaded binary index failed to decode
	ErrIndexMalformed = New("index malformed")

	// ErrUnsupportedJobKind indicates a job row carries a kind no worker knows
	ErrUnsupportedJobKind = New("unsupported job kind")
)

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsNotAuthorized checks if an error is or wraps ErrNotAuthorized.
func IsNotAuthorized(err error) bool {
	return err != nil && Is(err, ErrNotAuthorized)
}

// IsInvalidInput checks if an error is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return err != nil && Is(err, ErrInvalidInput)
}

// IsRepoNotCached checks if an error is or wraps ErrRepoNotCached.
func IsRepoNotCached(err error) bool {
	return err != nil && Is(err, ErrRepoNotCached)
}

// NotFoundf creates a not-found error with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// InvalidInputf creates an invalid-input error with a formatted message.
func InvalidInputf(format string, args ...interface{}) error {
	return Wrap(ErrInvalidInput, Newf(format, args...).Error())
}

// maxErrorMsgRunes bounds what FirstLine returns; job rows store the result.
const maxErrorMsgRunes = 500

// FirstLine extracts the first line of an error's message, truncated to a
// storable length. Job failure rows persist this instead of the full chain.
func FirstLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	runes := []rune(msg)
	if len(runes) > maxErrorMsgRunes {
		msg = string(runes[:maxErrorMsgRunes])
	}
	return msg
}
