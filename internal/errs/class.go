package errs

import "errors"

// Class is the coarse classification the API layer turns into a status code.
type Class string

const (
	ClassBadInput Class = "bad_input"
	ClassNotFound Class = "not_found"
	ClassUpstream Class = "upstream"
	ClassInternal Class = "internal"
)

// Class maps the kind onto one of the four response classes.
func (k ErrKind) Class() Class {
	switch k {
	case ErrKindConfig, ErrKindRejected, ErrKindInvalidInput:
		return ClassBadInput
	case ErrKindNotFound:
		return ClassNotFound
	case ErrKindConnectionFailed, ErrKindTimeout, ErrKindQueryFailed,
		ErrKindDecryption, ErrKindPermissionDenied:
		return ClassUpstream
	default:
		return ClassInternal
	}
}

// ClassOf classifies any error. Errors that never went through Wrap are
// internal faults.
func ClassOf(err error) Class {
	return KindOf(err).Class()
}

// PublicMessage returns the text that may leave the process for err.
// Only *Error messages are surfaced, and always sanitized; the cause chain
// stays in the logs.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	return Sanitize(e.Message)
}
