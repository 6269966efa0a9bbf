package dbtest

import (
	"context"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
)

// Cursor replays fixed rows. Read counts rows handed out, so tests can
// check that reading stopped at the cap. Drained counts rows Close had to
// consume.
type Cursor struct {
	cols     []database.Column
	rows     [][]any
	affected int64
	pos      int
	ctx      context.Context
	Read     int
	Drained  int
	Closed   bool
}

// Rows returns a cursor over rows with the given column names.
func Rows(names []string, rows ...[]any) *Cursor {
	cols := make([]database.Column, len(names))
	for i, n := range names {
		cols[i] = database.Column{Name: n, Type: "int8"}
	}
	return &Cursor{cols: cols, rows: rows}
}

// Affected returns a cursor for a statement that changed n rows.
func Affected(n int64) *Cursor {
	return &Cursor{affected: n}
}

func (c *Cursor) Columns() []database.Column { return c.cols }

func (c *Cursor) Next() bool {
	if c.pos >= len(c.rows) {
		return false
	}
	c.pos++
	c.Read++
	return true
}

func (c *Cursor) Scan(dest ...any) error {
	for i := range dest {
		if p, ok := dest[i].(*any); ok {
			*p = c.rows[c.pos-1][i]
		}
	}
	return nil
}

func (c *Cursor) Values() ([]any, error) {
	return c.rows[c.pos-1], nil
}

// Bind ties the cursor to its statement context.
func (c *Cursor) Bind(ctx context.Context) *Cursor {
	c.ctx = ctx
	return c
}

func (c *Cursor) Err() error          { return nil }
func (c *Cursor) RowsAffected() int64 { return c.affected }

// Close consumes unread rows the way network drivers do before the
// connection can carry another statement. A cancelled statement context
// skips that.
func (c *Cursor) Close() error {
	c.Closed = true
	if c.ctx != nil && c.ctx.Err() != nil {
		return nil
	}
	c.Drained = len(c.rows) - c.pos
	c.pos = len(c.rows)
	return nil
}

// Sequence returns n single-column rows 0..n-1 named "n".
func Sequence(n int) *Cursor {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	return Rows([]string{"n"}, rows...)
}

// Sleeper models a server that honours the session statement timeout: it
// blocks until the timeout or ctx fires, whichever is first.
func Sleeper(ctx context.Context, _ string, timeout time.Duration) (database.Cursor, error) {
	if timeout <= 0 {
		<-ctx.Done()
		return nil, errs.Wrap(errs.ErrKindTimeout, "query failed", ctx.Err())
	}
	select {
	case <-time.After(timeout):
		return nil, errs.New(errs.ErrKindTimeout, "query failed: statement timeout exceeded")
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ErrKindTimeout, "query failed", ctx.Err())
	}
}
