package errs

import (
	"errors"
	"fmt"
)

// Application error codes. Every error that leaves the crud layer is either an *Error carrying
// one of these codes, or an unexpected error that is treated as EINTERNAL.
const (
	ECONFLICT     = "conflict"
	EINTERNAL     = "internal"
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	ERATELIMIT    = "rate_limited"
	EUNAUTHORIZED = "unauthorized"
)

// Error represents an application-specific error. Its Message is safe to show to the client.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface. Not used by the client, only for logging and debugging.
func (e *Error) Error() string {
	return fmt.Sprintf("socialnet error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}
