// Package action defines the result envelope returned by every mutating
// operation exposed to clients. Domain services return *Error values; the
// API layer renders them through Result so callers can branch on Code.
package action

import (
	"errors"
	"fmt"
)

// Code identifies why an action failed.
type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeNotAvailable    Code = "NOT_AVAILABLE"
	CodeInvalidDistance Code = "INVALID_DISTANCE"
	CodeRetry           Code = "RETRY"
	CodeDisabled        Code = "DISABLED"
	CodeAlreadyInGroup  Code = "ALREADY_IN_GROUP"
	CodeGroupFull       Code = "GROUP_FULL"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInvalidMember   Code = "INVALID_MEMBER"
	CodeServerError     Code = "SERVER_ERROR"
)

// Error is a typed action failure.
type Error struct {
	Code        Code
	Message     string
	FieldErrors map[string][]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code, so callers can write
// errors.Is(err, action.ErrGroupFull).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code && (other.Message == "" || other.Message == e.Message)
}

// Fail builds an *Error with the given code and message.
func Fail(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Invalid builds a VALIDATION_ERROR with per-field messages.
func Invalid(fields map[string][]string) *Error {
	return &Error{Code: CodeValidation, Message: "Invalid input", FieldErrors: fields}
}

// Sentinel values for errors.Is comparisons. They carry no message so they
// match any *Error with the same code.
var (
	ErrUnauthenticated = &Error{Code: CodeUnauthenticated}
	ErrValidation      = &Error{Code: CodeValidation}
	ErrRateLimited     = &Error{Code: CodeRateLimited}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrNotAvailable    = &Error{Code: CodeNotAvailable}
	ErrInvalidDistance = &Error{Code: CodeInvalidDistance}
	ErrRetry           = &Error{Code: CodeRetry}
	ErrDisabled        = &Error{Code: CodeDisabled}
	ErrAlreadyInGroup  = &Error{Code: CodeAlreadyInGroup}
	ErrGroupFull       = &Error{Code: CodeGroupFull}
	ErrForbidden       = &Error{Code: CodeForbidden}
	ErrInvalidMember   = &Error{Code: CodeInvalidMember}
)

// CodeOf extracts the action code from err. Errors that are not action
// errors report SERVER_ERROR.
func CodeOf(err error) Code {
	var actionErr *Error
	if errors.As(err, &actionErr) {
		return actionErr.Code
	}
	return CodeServerError
}

// Result is the discriminated {ok, data} / {ok, error, code} envelope.
type Result[T any] struct {
	OK          bool                `json:"ok"`
	Data        T                   `json:"data,omitempty"`
	Error       string              `json:"error,omitempty"`
	Code        Code                `json:"code,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// Ok wraps data in a successful result.
func Ok[T any](data T) Result[T] {
	return Result[T]{OK: true, Data: data}
}

// From converts an error into a failed result. Non-action errors are
// reported as SERVER_ERROR with a generic message so internal details do not
// reach the client.
func From[T any](err error) Result[T] {
	var actionErr *Error
	if errors.As(err, &actionErr) {
		msg := actionErr.Message
		if msg == "" {
			msg = defaultMessages[actionErr.Code]
		}
		return Result[T]{
			OK:          false,
			Error:       msg,
			Code:        actionErr.Code,
			FieldErrors: actionErr.FieldErrors,
		}
	}
	return Result[T]{OK: false, Error: defaultMessages[CodeServerError], Code: CodeServerError}
}

var defaultMessages = map[Code]string{
	CodeUnauthenticated: "Authentication required",
	CodeValidation:      "Invalid input",
	CodeRateLimited:     "Too many requests, try again later",
	CodeNotFound:        "Not found",
	CodeNotAvailable:    "Not available",
	CodeInvalidDistance: "Distance does not belong to this edition",
	CodeRetry:           "Please try again",
	CodeDisabled:        "This link has been disabled",
	CodeAlreadyInGroup:  "Already a member of another group for this event",
	CodeGroupFull:       "Group is full",
	CodeForbidden:       "Not allowed",
	CodeInvalidMember:   "Invalid member",
	CodeServerError:     "Unexpected error",
}
