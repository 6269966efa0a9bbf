package sqlite

import (
	"errors"
	"fmt"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// mapError translates modernc.org/sqlite errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if e, ok := database.AsErr(err); ok {
		return e
	}
	if e := database.ContextError(err, msg); e != nil {
		return e
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		detail := fmt.Sprintf("%s: %s", msg, liteErr.Error())
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_AUTH:
			return errs.Wrap(errs.ErrKindConnectionFailed, detail, err)
		case sqlite3.SQLITE_INTERRUPT:
			return errs.Wrap(errs.ErrKindTimeout, detail, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return errs.Wrap(errs.ErrKindTimeout, detail+": database is locked", err)
		case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM:
			return errs.Wrap(errs.ErrKindPermissionDenied, detail, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, detail, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
