package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/koustreak/vizly/internal/database"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

var _ database.Opener = Open

// Open prepares a MySQL pool for conn. database/sql dials lazily, so no
// connection is made until the first Acquire.
func Open(_ context.Context, conn *database.Connection, password string, pc database.PoolConfig) (database.Engine, error) {
	dsn, err := BuildDSN(conn, password, pc)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, mapError(err, "invalid mysql connection settings")
	}
	configurePool(db, pc)
	return NewEngine(db, pc), nil
}

// NewEngine wraps an opened *sql.DB. Tests use it to inject sqlmock.
func NewEngine(db *sql.DB, pc database.PoolConfig) *database.SQLEngine {
	return database.NewSQLEngine(db, database.DialectMySQL, database.SQLOptions{
		TimeoutStatement: timeoutStatement,
		MapError:         mapError,
		PrePing:          pc.PrePing,
	})
}

// timeoutStatement caps SELECT execution time for the session. MySQL
// ignores it for writes, which the outer context deadline still covers.
func timeoutStatement(ms int64) string {
	return fmt.Sprintf("SET SESSION max_execution_time = %d", ms)
}
