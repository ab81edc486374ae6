// Package apperr defines the domain errors shared by the portal services.
//
// Services return *Error values; handlers match them with errors.Is against
// the sentinels or read the HTTP status straight from the error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidScore   Code = "INVALID_SCORE"
	CodeNotFound       Code = "NOT_FOUND"
	CodeDataAccess     Code = "DATA_ACCESS"
	CodeValidation     Code = "VALIDATION"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeAlreadyExists  Code = "ALREADY_EXISTS"
	CodeUnavailable    Code = "UNAVAILABLE"
	CodeBadCredentials Code = "INVALID_CREDENTIALS"
)

// HTTPStatus maps a code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidScore, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeBadCredentials:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, a user facing message and an optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

var (
	ErrInvalidScore   = &Error{Code: CodeInvalidScore, Message: "invalid score"}
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrDataAccess     = &Error{Code: CodeDataAccess, Message: "data access error"}
	ErrValidation     = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnauthorized   = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden      = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrAlreadyExists  = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnavailable    = &Error{Code: CodeUnavailable, Message: "unavailable"}
	ErrBadCredentials = &Error{Code: CodeBadCredentials, Message: "invalid credentials"}
)

func InvalidScore(msg string) *Error {
	return &Error{Code: CodeInvalidScore, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// DataAccess wraps a store failure. The message stays generic so the cause is
// never shown to clients.
func DataAccess(err error) *Error {
	return &Error{Code: CodeDataAccess, Message: "database error", cause: err}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

func BadCredentials(msg string) *Error {
	return &Error{Code: CodeBadCredentials, Message: msg}
}

// Status returns the HTTP status for err, 500 for anything that is not an *Error.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns a message safe to show to clients.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
