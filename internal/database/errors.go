package database

import (
	"context"
	"errors"

	"github.com/koustreak/vizly/internal/errs"
)

// ContextError maps context expiry onto errs kinds. It returns nil when err
// is not a context error, so drivers can fall through to their own codes.
func ContextError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg+": cancelled", err)
	}
	return nil
}

// AsErr keeps an *errs.Error produced deeper down instead of re-wrapping it
// under a new kind.
func AsErr(err error) (*errs.Error, bool) {
	var e *errs.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func errQuery(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}
