// Package errs provides the unified error type used across all of vizly.
//
// Every subsystem (vault, registry, drivers, executor, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates and ClassOf to handle errors without importing driver-specific
// packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "statement timed out", pgErr)
//
//	// In a handler, map the error onto a response class:
//	switch errs.ClassOf(err) {
//	case errs.ClassBadInput:
//	    w.WriteHeader(http.StatusBadRequest)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, SQLite, MinIO, …) map their native errors to
// one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no connection, no object, no bucket
	ErrKindConnectionFailed         // cannot reach or authenticate against the backend
	ErrKindTimeout                  // statement timeout, context deadline
	ErrKindQueryFailed              // driver rejected or failed the statement
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied by the storage backend
	ErrKindConfig                   // malformed connection definition
	ErrKindRejected                 // statement declined by the SQL guard
	ErrKindDecryption               // stored credential cannot be decrypted
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConfig:
		return "config"
	case ErrKindRejected:
		return "rejected"
	case ErrKindDecryption:
		return "decryption"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all vizly subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a statement timeout or deadline.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a driver-level statement failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConfig reports whether err describes a malformed connection definition.
func IsConfig(err error) bool {
	return KindOf(err) == ErrKindConfig
}

// IsRejected reports whether the SQL guard declined the statement.
func IsRejected(err error) bool {
	return KindOf(err) == ErrKindRejected
}

// IsDecryption reports whether a stored credential could not be decrypted.
// It looks through the whole chain, so a decryption failure surfaced as
// connection_failed still answers true.
func IsDecryption(err error) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == ErrKindDecryption {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf extracts the outermost ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
