// Package errs defines the error taxonomy shared by the core components.
// Every error carries a kind so the surrounding transport layer can map it
// to a status code without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

// Error kinds.
const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindComputation Kind = "computation"
)

// Error is a kinded error with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a validation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Computation returns an internal computation error. These indicate a bug
// (e.g. a traversal that failed to terminate) and are not expected in
// normal operation.
func Computation(format string, args ...any) error {
	return &Error{Kind: KindComputation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsComputation reports whether err is a computation error.
func IsComputation(err error) bool { return KindOf(err) == KindComputation }
