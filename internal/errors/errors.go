// Package errors provides standardized domain errors with codes for the ShelfSync API.
//
// Usage:
//
//	// In services - return typed errors
//	if resolved {
//	    return errors.AlreadyResolved(entryID)
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrDecode) {
//	    return huma.Error400BadRequest(err.Error())
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeInvalidMapping:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeValidation      Code = "VALIDATION"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
	CodeDecode          Code = "DECODE"
	CodeInvalidMapping  Code = "INVALID_MAPPING"
	CodeMissingField    Code = "MISSING_REQUIRED_FIELD"
	CodeBadISBN         Code = "UNPARSEABLE_ISBN"
	CodeStorage         Code = "STORAGE"
	CodeAlreadyResolved Code = "ALREADY_RESOLVED"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeAlreadyResolved:
		return http.StatusConflict
	case CodeValidation, CodeDecode, CodeInvalidMapping, CodeMissingField, CodeBadISBN:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict        = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error"}
	ErrDecode          = &Error{Code: CodeDecode, Message: "decode error"}
	ErrInvalidMapping  = &Error{Code: CodeInvalidMapping, Message: "invalid field mapping"}
	ErrMissingField    = &Error{Code: CodeMissingField, Message: "missing required field"}
	ErrBadISBN         = &Error{Code: CodeBadISBN, Message: "unparseable isbn"}
	ErrStorage         = &Error{Code: CodeStorage, Message: "storage error"}
	ErrAlreadyResolved = &Error{Code: CodeAlreadyResolved, Message: "already resolved"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Decode creates a file-level decode error. Decode errors are fatal to an
// import run: nothing row-level has been processed when one is returned.
func Decode(msg string) *Error {
	return &Error{Code: CodeDecode, Message: msg}
}

// Decodef creates a decode error with formatted message.
func Decodef(format string, args ...any) *Error {
	return &Error{Code: CodeDecode, Message: fmt.Sprintf(format, args...)}
}

// InvalidMapping creates an invalid mapping error. Raised before any row is
// processed when a caller-supplied override references an unknown column.
func InvalidMapping(msg string) *Error {
	return &Error{Code: CodeInvalidMapping, Message: msg}
}

// InvalidMappingf creates an invalid mapping error with formatted message.
func InvalidMappingf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidMapping, Message: fmt.Sprintf(format, args...)}
}

// MissingField creates a row-level missing required field error.
func MissingField(field string, rowNumber int) *Error {
	return &Error{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("row %d: required field %q is empty", rowNumber, field),
		Details: map[string]any{"field": field, "row_number": rowNumber},
	}
}

// BadISBN creates a row-level unparseable ISBN error.
func BadISBN(raw string, rowNumber int) *Error {
	return &Error{
		Code:    CodeBadISBN,
		Message: fmt.Sprintf("row %d: cannot parse isbn %q", rowNumber, raw),
		Details: map[string]any{"isbn": raw, "row_number": rowNumber},
	}
}

// Storage creates a row-level storage error for commit-time write failures.
func Storage(msg string) *Error {
	return &Error{Code: CodeStorage, Message: msg}
}

// AlreadyResolved creates an error for resolving a manual match entry twice.
func AlreadyResolved(entryID string) *Error {
	return &Error{
		Code:    CodeAlreadyResolved,
		Message: fmt.Sprintf("manual match entry %s is already resolved", entryID),
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
