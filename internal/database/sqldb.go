package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"strings"
	"time"

	"github.com/koustreak/vizly/internal/errs"
)

// SQLOptions tailor a database/sql engine to one dialect.
type SQLOptions struct {
	// TimeoutStatement renders the session statement that sets a timeout of
	// ms milliseconds. Nil means the dialect has no native timeout.
	TimeoutStatement func(ms int64) string

	// MapError translates native driver errors. Required.
	MapError func(err error, msg string) error

	// PrePing checks each session before handing it out.
	PrePing bool
}

// SQLEngine is an Engine over database/sql, shared by the MySQL and SQLite
// drivers. It is safe for concurrent use by multiple goroutines.
type SQLEngine struct {
	db      *sql.DB
	dialect Dialect
	opts    SQLOptions
}

// NewSQLEngine wraps an opened *sql.DB. Pool limits must already be set.
func NewSQLEngine(db *sql.DB, dialect Dialect, opts SQLOptions) *SQLEngine {
	return &SQLEngine{db: db, dialect: dialect, opts: opts}
}

func (e *SQLEngine) Dialect() Dialect { return e.dialect }

// DB exposes the underlying handle for driver-specific wiring and tests.
func (e *SQLEngine) DB() *sql.DB { return e.db }

// Acquire checks a dedicated *sql.Conn out of the pool. With PrePing set, a
// dead session is discarded and one replacement is tried before giving up.
func (e *SQLEngine) Acquire(ctx context.Context) (Session, error) {
	attempts := 1
	if e.opts.PrePing {
		attempts = 2
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := e.db.Conn(ctx)
		if err != nil {
			return nil, e.opts.MapError(err, "failed to open session")
		}
		s := &sqlSession{conn: conn, engine: e}
		if !e.opts.PrePing {
			return s, nil
		}
		if err := conn.PingContext(ctx); err != nil {
			s.Discard()
			lastErr = err
			continue
		}
		return s, nil
	}
	return nil, e.opts.MapError(lastErr, "session failed liveness check")
}

func (e *SQLEngine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return e.opts.MapError(err, "ping failed")
	}
	return nil
}

func (e *SQLEngine) Stats() PoolStats {
	s := e.db.Stats()
	return PoolStats{
		Open:    s.OpenConnections,
		InUse:   s.InUse,
		Idle:    s.Idle,
		MaxOpen: s.MaxOpenConnections,
	}
}

// Close lets checked-out sessions finish before the pool is torn down.
func (e *SQLEngine) Close() {
	_ = e.db.Close()
}

// --- session ---

type sqlSession struct {
	conn   *sql.Conn
	engine *SQLEngine
	done   bool
}

func (s *sqlSession) SetStatementTimeout(ctx context.Context, d time.Duration) error {
	if s.engine.opts.TimeoutStatement == nil || d <= 0 {
		return nil
	}
	stmt := s.engine.opts.TimeoutStatement(d.Milliseconds())
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return s.engine.opts.MapError(err, "failed to set statement timeout")
	}
	return nil
}

func (s *sqlSession) Run(ctx context.Context, query string, args ...any) (Cursor, error) {
	mapErr := s.engine.opts.MapError

	if !ReturnsRows(query) {
		res, err := s.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapErr(err, "statement failed")
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = 0
		}
		return &execCursor{affected: n}, nil
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "query failed")
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, mapErr(err, "failed to read column metadata")
	}
	cols := make([]Column, len(types))
	for i, ct := range types {
		cols[i] = Column{Name: ct.Name(), Type: strings.ToLower(ct.DatabaseTypeName())}
	}

	return &sqlCursor{rows: rows, cols: cols, mapErr: mapErr}, nil
}

func (s *sqlSession) Release() {
	if s.done {
		return
	}
	s.done = true
	_ = s.conn.Close()
}

// Discard marks the underlying driver connection bad so database/sql closes
// it instead of returning it to the idle pool.
func (s *sqlSession) Discard() {
	if s.done {
		return
	}
	s.done = true
	_ = s.conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = s.conn.Close()
}

// --- cursors ---

type sqlCursor struct {
	rows   *sql.Rows
	cols   []Column
	mapErr func(error, string) error
}

func (c *sqlCursor) Columns() []Column      { return c.cols }
func (c *sqlCursor) Next() bool             { return c.rows.Next() }
func (c *sqlCursor) Scan(dest ...any) error { return c.rows.Scan(dest...) }
func (c *sqlCursor) RowsAffected() int64    { return 0 }

func (c *sqlCursor) Values() ([]any, error) {
	return scanValues(c.rows.Scan, len(c.cols))
}

func (c *sqlCursor) Err() error {
	if err := c.rows.Err(); err != nil {
		return c.mapErr(err, "error during row iteration")
	}
	return nil
}

func (c *sqlCursor) Close() error {
	if err := c.rows.Close(); err != nil {
		return c.mapErr(err, "failed to close result set")
	}
	return c.Err()
}

type execCursor struct {
	affected int64
}

func (c *execCursor) Columns() []Column      { return nil }
func (c *execCursor) Next() bool             { return false }
func (c *execCursor) Scan(dest ...any) error { return errs.New(errs.ErrKindQueryFailed, "statement returned no rows") }
func (c *execCursor) Values() ([]any, error) { return nil, errs.New(errs.ErrKindQueryFailed, "statement returned no rows") }
func (c *execCursor) Err() error             { return nil }
func (c *execCursor) Close() error           { return nil }
func (c *execCursor) RowsAffected() int64    { return c.affected }

// --- statement shape ---

var (
	rowKeywords = map[string]bool{
		"SELECT": true, "WITH": true, "SHOW": true, "DESCRIBE": true, "DESC": true,
		"EXPLAIN": true, "PRAGMA": true, "VALUES": true, "TABLE": true,
	}
	returningRe = regexp.MustCompile(`(?i)\bRETURNING\b`)
)

// ReturnsRows guesses from its leading keyword whether query produces a row
// stream. database/sql cannot report affected rows for a statement sent
// through Query, so the choice has to be made before execution.
func ReturnsRows(query string) bool {
	kw := strings.ToUpper(FirstKeyword(query))
	if rowKeywords[kw] {
		return true
	}
	return returningRe.MatchString(query)
}

// FirstKeyword returns the first word of query, skipping leading
// whitespace, opening parentheses and comments.
func FirstKeyword(query string) string {
	q := skipLeading(query)
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if end < 0 {
		return q
	}
	return q[:end]
}

func skipLeading(q string) string {
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q[2:], "*/")
			if i < 0 {
				return ""
			}
			q = q[i+4:]
		default:
			return q
		}
	}
}
