package server

import (
	"errors"
	"fmt"
)

type ErrorCode uint

const (
	ErrUnknown ErrorCode = iota
	ErrNotFound
	ErrBadParamInput
	ErrInternalServerError
	ErrNodeNotFound
	ErrInvalidCoordinates
	ErrNoRouteFound
	ErrSearchExhausted
	ErrGraphConstruction
)

// Error wraps an origin error with an application error code so callers
// can map failures to API statuses without string matching.
type Error struct {
	orig error
	msg  string
	code ErrorCode
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

func (e *Error) Code() ErrorCode {
	return e.code
}

func NewError(code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg}
}

func NewErrorf(code ErrorCode, format string, a ...interface{}) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

func WrapErrorf(orig error, code ErrorCode, format string, a ...interface{}) error {
	return &Error{code: code, orig: orig, msg: fmt.Sprintf(format, a...)}
}

// ErrorCodeOf walks the error chain and returns the outermost code,
// ErrUnknown when none is found.
func ErrorCodeOf(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return ErrUnknown
}
