package database

import (
	"context"
	"time"
)

// Engine is a live handle bound to one connection's current configuration.
// Pooled dialects keep sessions open between uses; file-backed ones open a
// session per Acquire. All layers above this package talk only to this
// interface and never import the driver packages directly.
type Engine interface {
	Dialect() Dialect

	// Acquire checks a session out for exclusive use. The caller must end
	// it with exactly one of Release or Discard.
	Acquire(ctx context.Context) (Session, error)

	// Ping verifies the target is reachable.
	Ping(ctx context.Context) error

	// Stats reports current pool occupancy.
	Stats() PoolStats

	// Close stops handing out sessions and waits for checked-out ones to
	// come back before closing them. In-flight statements are not aborted.
	Close()
}

// Session is one checked-out database session.
type Session interface {
	// SetStatementTimeout applies d as the server-side limit for statements
	// run on this session. It is a no-op on dialects without one.
	SetStatementTimeout(ctx context.Context, d time.Duration) error

	// Run executes query once. Statements that do not produce rows return a
	// Cursor with no columns whose RowsAffected is valid after Close.
	Run(ctx context.Context, query string, args ...any) (Cursor, error)

	// Release returns the session to its pool.
	Release()

	// Discard closes the session instead of returning it; used when its
	// state is unknown, e.g. after a timeout.
	Discard()
}

// Cursor is a forward-only result stream.
// Callers must always call Close when done, even on error.
type Cursor interface {
	// Columns describes the result set; empty for statements without rows.
	Columns() []Column

	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into dest.
	Scan(dest ...any) error

	// Values returns the current row as driver-native Go values, with byte
	// slices converted to strings.
	Values() ([]any, error)

	// Err returns any error encountered during iteration.
	Err() error

	// Close releases the stream and reports any deferred error.
	Close() error

	// RowsAffected is the driver-reported count for statements without rows.
	RowsAffected() int64
}

// Column is one result column as described by the driver.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PoolStats is a point-in-time view of an engine's sessions.
type PoolStats struct {
	Open    int `json:"open"`
	InUse   int `json:"in_use"`
	Idle    int `json:"idle"`
	MaxOpen int `json:"max_open"`
}

// Opener builds an engine for conn using the already-decrypted password.
// It must not contact the database; connectivity problems surface on the
// first Acquire or Ping.
type Opener func(ctx context.Context, conn *Connection, password string, pool PoolConfig) (Engine, error)
