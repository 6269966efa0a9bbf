package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
)

// PostgreSQL SQLSTATE codes and classes we branch on.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnection    = "08"
	pgClassInvalidAuth   = "28"
	pgErrQueryCanceled   = "57014"
	pgErrAdminShutdown   = "57P01"
	pgErrCannotConnect   = "57P03"
	pgErrInvalidCatalog  = "3D000"
	pgErrTooManyConnects = "53300"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
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

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail := fmt.Sprintf("%s: %s", msg, pgErr.Message)
		switch {
		case pgErr.Code == pgErrQueryCanceled:
			return errs.Wrap(errs.ErrKindTimeout, msg+": statement timeout exceeded", err)
		case strings.HasPrefix(pgErr.Code, pgClassConnection),
			strings.HasPrefix(pgErr.Code, pgClassInvalidAuth),
			pgErr.Code == pgErrAdminShutdown,
			pgErr.Code == pgErrCannotConnect,
			pgErr.Code == pgErrInvalidCatalog,
			pgErr.Code == pgErrTooManyConnects:
			return errs.Wrap(errs.ErrKindConnectionFailed, detail, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, detail, err)
	}

	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
