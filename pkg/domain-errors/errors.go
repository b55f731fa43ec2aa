// Package domainerrors provides coded domain errors shared across services.
//
// Services create these at the point of failure; the transport layer maps
// codes to HTTP statuses and wire error codes. The tag carries the wire-level
// error code when the generic code is not specific enough (e.g. a 401 that
// must surface as TOKEN_EXPIRED rather than INVALID_TOKEN). The underlying
// cause, when wrapped, is for logs only and never leaves the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for status mapping and handling decisions.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "unavailable"
	CodeMaintenance  Code = "maintenance"
	CodeInternal     Code = "internal"
)

// Error is a domain error carrying a code, a safe user-facing message, an
// optional wire tag, and an optional wrapped cause.
type Error struct {
	Code    Code
	Tag     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another domain error by code and message, letting tests assert
// with errors.Is against a freshly constructed value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a domain error with the given code and safe message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// NewTagged creates a domain error that also carries an explicit wire tag.
func NewTagged(code Code, tag, message string) error {
	return &Error{Code: code, Tag: tag, Message: message}
}

// Wrap attaches a code and safe message to an underlying cause. The cause is
// preserved for logging and errors.Is/As but is not part of the safe message.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// WrapTagged is Wrap with an explicit wire tag.
func WrapTagged(err error, code Code, tag, message string) error {
	return &Error{Code: code, Tag: tag, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors so unexpected failures never leak detail.
func CodeOf(err error) Code {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}

// TagOf extracts the wire tag from err, or "" when none was set.
func TagOf(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Tag
	}
	return ""
}

// SafeMessage returns the user-facing message for err. Non-domain errors get
// a generic message so internal causes are never exposed.
func SafeMessage(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return "internal server error"
}
