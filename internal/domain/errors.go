package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the closed set collaborators are allowed to
// see. HTTP layers map kinds to status codes without knowing which physical
// store produced the failure.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindForbidden          Kind = "forbidden"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindStore              Kind = "store_error"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
}

// StoreError wraps a raw driver error so it never leaks to collaborators.
func StoreError(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: op, Err: err}
}

// KindOf extracts the classification from err, defaulting to KindStore for
// anything that escaped without being wrapped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func IsNotFound(err error) bool           { return KindOf(err) == KindNotFound }
func IsInvalidInput(err error) bool       { return KindOf(err) == KindInvalidInput }
func IsForbidden(err error) bool          { return KindOf(err) == KindForbidden }
func IsInvalidCredentials(err error) bool { return KindOf(err) == KindInvalidCredentials }
