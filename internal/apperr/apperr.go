// Package apperr defines the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateHandle
	KindInvalidCredentials
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

var kindMessage = map[Kind]string{
	KindInternal:           "Server Error",
	KindValidation:         "Invalid data",
	KindDuplicateHandle:    "User already exists",
	KindInvalidCredentials: "Invalid mobile number or password",
	KindUnauthorized:       "Not authorized",
	KindForbidden:          "Forbidden",
	KindNotFound:           "Not found",
	KindConflict:           "Conflict",
}

// Forbidden keeps the 401 status existing clients already handle.
var kindHTTPCode = map[Kind]int{
	KindInternal:           http.StatusInternalServerError,
	KindValidation:         http.StatusBadRequest,
	KindDuplicateHandle:    http.StatusBadRequest,
	KindInvalidCredentials: http.StatusUnauthorized,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusUnauthorized,
	KindNotFound:           http.StatusNotFound,
	KindConflict:           http.StatusConflict,
}

var kindCode = map[Kind]string{
	KindInternal:           "0001",
	KindValidation:         "0002",
	KindDuplicateHandle:    "0003",
	KindInvalidCredentials: "0004",
	KindUnauthorized:       "0005",
	KindForbidden:          "0006",
	KindNotFound:           "0007",
	KindConflict:           "0008",
}

// Error is a classified failure. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPCode() int {
	return kindHTTPCode[e.Kind]
}

func (e *Error) Code() string {
	return kindCode[e.Kind]
}

// Body renders the JSON response body. Internal errors carry the cause text
// in an "error" field, matching what existing clients parse.
func (e *Error) Body() map[string]interface{} {
	body := map[string]interface{}{"message": e.Message}
	if e.Kind == KindInternal && e.Cause != nil {
		body["error"] = e.Cause.Error()
	}
	return body
}

// New creates an error of the given kind. An empty message uses the kind default.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kindMessage[kind]
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// Internal classifies an unexpected failure from a store or dependency.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "", cause)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// From returns err as an *Error, classifying anything unknown as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
