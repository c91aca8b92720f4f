package realtime

import (
	"errors"
	"fmt"
)

// Code identifies a failure class of a live operation. Codes are part of the
// wire protocol: clients branch on the code, never on the message text.
type Code string

const (
	CodeUnauthenticated   Code = "Unauthenticated"
	CodeForbidden         Code = "Forbidden"
	CodeNotFound          Code = "NotFound"
	CodeExpired           Code = "Expired"
	CodeInvalidState      Code = "InvalidState"
	CodeOutOfRange        Code = "OutOfRange"
	CodeAlreadyAtBoundary Code = "AlreadyAtBoundary"
	CodeConflict          Code = "Conflict"
	CodeUnavailable       Code = "Unavailable"
	CodeBadRequest        Code = "BadRequest"
)

// Error is the failure result of a live operation. It travels back to the
// client inside an ack payload and never tears down the connection.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError normalizes any error into an *Error. Unexpected internal failures
// map to Unavailable so a bug on one connection cannot leak stack details or
// crash the process.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeUnavailable, Message: "internal error"}
}
