// Package apperror carries the error taxonomy shared by the core services:
// validation, not-found, conflict, authentication and authorization failures.
// Handlers return these as-is; the fiber ErrorHandler turns them into responses.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Reason codes sent to the client next to the message.
const (
	CodeInvalidInput           = "invalid_input"
	CodeNotFound               = "not_found"
	CodeAlreadyExists          = "already_exists"
	CodeRetry                  = "retry"
	CodeInvalidCredentials     = "invalid_credentials"
	CodeAlreadyLoggedIn        = "already_logged_in"
	CodeUserInactive           = "user_inactive"
	CodeBusinessInactive       = "business_inactive"
	CodeSubscriptionNotStarted = "subscription_not_started"
	CodeReadOnly               = "read_only"
	CodeSessionClosed          = "session_closed"
	CodeTokenInvalid           = "token_invalid"
	CodeForbidden              = "forbidden"
	CodeReferenced             = "referenced"
)

type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func New(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return New(ErrValidation, CodeInvalidInput, message)
}

func NotFound(message string) *Error {
	return New(ErrNotFound, CodeNotFound, message)
}

func Conflict(message string) *Error {
	return New(ErrConflict, CodeAlreadyExists, message)
}

func Unauthorized(code, message string) *Error {
	return New(ErrUnauthorized, code, message)
}

func Forbidden(code, message string) *Error {
	return New(ErrForbidden, code, message)
}

// Status maps an error kind to its HTTP status. Unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// CodeOf returns the reason code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
