package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a failure the caller can act on. Kind is one of the sentinels above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NewError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...interface{}) *Error {
	return NewError(ErrBadRequest, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return NewError(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return NewError(ErrForbidden, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return NewError(ErrUnauthorized, format, args...)
}

// Conditions reported by repositories when a guarded write did not apply.
// Services translate them into Error values with user-facing messages.
var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrBookUnavailable      = errors.New("book not found or out of stock")
	ErrBookInOpenBorrow     = errors.New("book referenced by an open borrow")
	ErrBookOutOfStock       = errors.New("book has no stock")
	ErrUserHasOpenBorrow    = errors.New("user has an open borrow")
	ErrUserHasActivePenalty = errors.New("user has an active penalty")
	ErrDuplicateCode        = errors.New("duplicate code")
	ErrDuplicateEmail       = errors.New("duplicate email")
)
