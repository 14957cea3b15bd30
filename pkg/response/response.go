// Package response defines the coded errors API handlers turn into JSON.
package response

import (
	"errors"
)

// Error pairs an HTTP status with a stable reason code operators and clients
// can match on, e.g. "INVALID_IMAGE".
type Error struct {
	Code   int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same status and reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason
}

func NewError(code int, reason, message string) error {
	return &Error{Code: code, Reason: reason, Err: errors.New(message)}
}
