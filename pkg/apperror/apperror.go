// Package apperror defines the error taxonomy surfaced by the command and
// query sides. Every error carries a kind (how the caller should react) and
// a stable domain code (e.g. "ORG-MEMBER-003") suitable for localization.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindAlreadyExists
	KindFailedPrecondition
	KindUnauthenticated
	KindPermissionDenied
	// KindAborted is surfaced after the command engine exhausts its
	// concurrency-conflict retries.
	KindAborted
	KindUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindFailedPrecondition:
		return "FailedPrecondition"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindAborted:
		return "Aborted"
	case KindUnavailable:
		return "Unavailable"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is a domain error with a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Parent  error
}

func (e *Error) Error() string {
	if e.Parent != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Parent)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Parent }

// Is matches on kind and, when set on the target, code. This lets callers
// write errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, parent error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Parent: parent}
}

func InvalidArgument(parent error, code, message string) *Error {
	return newError(KindInvalidArgument, parent, code, message)
}

func NotFound(parent error, code, message string) *Error {
	return newError(KindNotFound, parent, code, message)
}

func AlreadyExists(parent error, code, message string) *Error {
	return newError(KindAlreadyExists, parent, code, message)
}

func FailedPrecondition(parent error, code, message string) *Error {
	return newError(KindFailedPrecondition, parent, code, message)
}

func Unauthenticated(parent error, code, message string) *Error {
	return newError(KindUnauthenticated, parent, code, message)
}

func PermissionDenied(parent error, code, message string) *Error {
	return newError(KindPermissionDenied, parent, code, message)
}

func Aborted(parent error, code, message string) *Error {
	return newError(KindAborted, parent, code, message)
}

func Unavailable(parent error, code, message string) *Error {
	return newError(KindUnavailable, parent, code, message)
}

func Internal(parent error, code, message string) *Error {
	return newError(KindInternal, parent, code, message)
}

func isKind(err error, kind Kind) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == kind
}

func IsInvalidArgument(err error) bool    { return isKind(err, KindInvalidArgument) }
func IsNotFound(err error) bool           { return isKind(err, KindNotFound) }
func IsAlreadyExists(err error) bool      { return isKind(err, KindAlreadyExists) }
func IsFailedPrecondition(err error) bool { return isKind(err, KindFailedPrecondition) }
func IsUnauthenticated(err error) bool    { return isKind(err, KindUnauthenticated) }
func IsPermissionDenied(err error) bool   { return isKind(err, KindPermissionDenied) }
func IsAborted(err error) bool            { return isKind(err, KindAborted) }
func IsUnavailable(err error) bool        { return isKind(err, KindUnavailable) }
func IsInternal(err error) bool           { return isKind(err, KindInternal) }

// CodeOf returns the domain code of err, or "" if err is not an *Error.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
