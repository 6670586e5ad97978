// Package apierrors defines the error taxonomy for the API operations.
//
// Every error surfaced to a caller carries a Code (the machine-readable
// error_code of the result envelope), a message, and optional structured
// Extra fields. Services create these directly; infrastructure layers
// return sentinel errors and services translate at the boundary.
package apierrors

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error classification.
type Code string

const (
	// CodeNone is the unclassified fallback. The gender resolution path
	// raises it with an empty code on purpose; see the design notes.
	CodeNone Code = ""

	// CodeInvalidFormat covers malformed or inconsistent input and backend
	// validation failures (bad IBAN/BIC, unknown payment instrument,
	// contact resolution failure, missing linked contribution).
	CodeInvalidFormat Code = "invalid_format"

	// CodeMandatoryMissing covers conditionally-required fields that are
	// absent. The Extra payload names the offending fields.
	CodeMandatoryMissing Code = "mandatory_missing"

	// CodeInternal covers unexpected infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is the structured API error.
type Error struct {
	Code    Code
	Message string
	Extra   map[string]any
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithExtra attaches a structured extra field and returns the error for
// chaining. A nil Extra map is allocated on first use.
func (e *Error) WithExtra(key string, value any) *Error {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

// HasCode reports whether err is an *Error carrying the given code.
func HasCode(err error, code Code) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// From coerces any error into an *Error. Non-API errors become
// CodeInternal with their message preserved.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Code: CodeInternal, Message: err.Error(), cause: err}
}
