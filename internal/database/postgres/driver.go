package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/vizly/internal/database"
)

// discardTimeout bounds how long closing a poisoned connection may take.
const discardTimeout = 5 * time.Second

// Engine is a PostgreSQL implementation of database.Engine backed by
// pgxpool. It is safe for concurrent use by multiple goroutines.
type Engine struct {
	pool *pgxpool.Pool
}

var _ database.Opener = Open

// Open builds a lazy pool for conn. No connection is made until the first
// Acquire, so a bad password or unreachable host surfaces on first use.
func Open(ctx context.Context, conn *database.Connection, password string, pc database.PoolConfig) (database.Engine, error) {
	poolCfg, err := buildPoolConfig(conn, password, pc)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mapError(err, "failed to create connection pool")
	}
	return &Engine{pool: pool}, nil
}

func (e *Engine) Dialect() database.Dialect { return database.DialectPostgres }

// Acquire checks a connection out of the pool. When pre-ping is enabled the
// pool pings it first and replaces it if dead.
func (e *Engine) Acquire(ctx context.Context) (database.Session, error) {
	c, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "failed to open session")
	}
	return &session{conn: c}, nil
}

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (e *Engine) Stats() database.PoolStats {
	s := e.pool.Stat()
	return database.PoolStats{
		Open:    int(s.TotalConns()),
		InUse:   int(s.AcquiredConns()),
		Idle:    int(s.IdleConns()),
		MaxOpen: int(s.MaxConns()),
	}
}

// Close blocks until every checked-out connection is released, then drains
// the pool.
func (e *Engine) Close() {
	e.pool.Close()
}

// --- session ---

type session struct {
	conn *pgxpool.Conn
	done bool
}

func (s *session) SetStatementTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if _, err := s.conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", d.Milliseconds())); err != nil {
		return mapError(err, "failed to set statement timeout")
	}
	return nil
}

func (s *session) Run(ctx context.Context, query string, args ...any) (database.Cursor, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	// pgx defers server errors for statements without a row description
	// until the rows are drained.
	if len(rows.FieldDescriptions()) == 0 {
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, mapError(err, "statement failed")
		}
	}
	return &cursor{rows: rows, cols: columnsOf(rows)}, nil
}

func (s *session) Release() {
	if s.done {
		return
	}
	s.done = true
	s.conn.Release()
}

// Discard takes the connection away from the pool and closes it, so a
// statement still running server side cannot leak into the next borrower.
func (s *session) Discard() {
	if s.done {
		return
	}
	s.done = true
	raw := s.conn.Hijack()
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	_ = raw.Close(ctx)
}

// --- cursor ---

type cursor struct {
	rows pgx.Rows
	cols []database.Column
}

func (c *cursor) Columns() []database.Column { return c.cols }
func (c *cursor) Next() bool                 { return c.rows.Next() }
func (c *cursor) Scan(dest ...any) error     { return c.rows.Scan(dest...) }

func (c *cursor) Values() ([]any, error) {
	vals, err := c.rows.Values()
	if err != nil {
		return nil, mapError(err, "failed to decode row")
	}
	for i, v := range vals {
		vals[i] = database.NormalizeValue(v)
	}
	return vals, nil
}

func (c *cursor) Err() error {
	if err := c.rows.Err(); err != nil {
		return mapError(err, "error during row iteration")
	}
	return nil
}

func (c *cursor) Close() error {
	c.rows.Close()
	return c.Err()
}

// RowsAffected is only meaningful after Close.
func (c *cursor) RowsAffected() int64 {
	return c.rows.CommandTag().RowsAffected()
}

func columnsOf(rows pgx.Rows) []database.Column {
	descs := rows.FieldDescriptions()
	cols := make([]database.Column, len(descs))
	tm := rows.Conn().TypeMap()
	for i, d := range descs {
		cols[i] = database.Column{Name: d.Name, Type: typeName(tm, d)}
	}
	return cols
}

func typeName(tm *pgtype.Map, d pgconn.FieldDescription) string {
	if t, ok := tm.TypeForOID(d.DataTypeOID); ok {
		return strings.ToLower(t.Name)
	}
	return fmt.Sprintf("oid:%d", d.DataTypeOID)
}
