package mysql

import (
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errTooManyConns      = 1040
	errDBAccessDenied    = 1044
	errAccessDenied      = 1045
	errUnknownDatabase   = 1049
	errUserConnLimit     = 1203
	errQueryInterrupted  = 1317
	errExecTimeExceeded  = 3024
	errClientConnect     = 2002
	errClientHostConnect = 2003
	errClientUnknownHost = 2005
	errClientGone        = 2006
	errClientLostConn    = 2013
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
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

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	// Fallthrough: driver-level errors (bad conn, TLS, network)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errExecTimeExceeded, errQueryInterrupted:
		return errs.ErrKindTimeout
	case errDBAccessDenied, errAccessDenied, errUnknownDatabase,
		errTooManyConns, errUserConnLimit,
		errClientConnect, errClientHostConnect, errClientUnknownHost, errClientGone, errClientLostConn:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
