// Package apperr carries the error kinds surfaced to API clients.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	Authentication
	Persistence
	NotFound
	Conflict
)

// Error is a client-facing failure. Message is safe to return in a response
// body; Err holds the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(msg string) *Error { return &Error{Kind: Validation, Message: msg} }

func AuthenticationError(msg string) *Error { return &Error{Kind: Authentication, Message: msg} }

func PersistenceError(msg string, err error) *Error {
	return &Error{Kind: Persistence, Message: msg, Err: err}
}

func NotFoundError(msg string) *Error { return &Error{Kind: NotFound, Message: msg} }

func ConflictError(msg string) *Error { return &Error{Kind: Conflict, Message: msg} }

// KindOf reports the kind of err, Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

func StatusCode(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
