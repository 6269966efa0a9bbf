// Package schema introspects the tables, columns, keys and indexes of a
// stored connection by querying the database's own catalog.
package schema

import (
	"context"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
)

// DefaultTimeout bounds a whole introspection. Catalog queries are cheap;
// anything slower than this is treated as a failure.
const DefaultTimeout = 10 * time.Second

// Reader is the interface for introspecting a connection's schema.
type Reader interface {
	Inspect(ctx context.Context, conn *database.Connection) (*Snapshot, error)
}

// EngineSource supplies pooled engines. *registry.Registry satisfies it.
type EngineSource interface {
	GetEngine(ctx context.Context, conn *database.Connection) (database.Engine, error)
}

// introspectFunc reads one dialect's catalog through c.
type introspectFunc func(ctx context.Context, c *catalog) ([]Table, error)

var introspectors = map[database.Dialect]introspectFunc{
	database.DialectPostgres: inspectPostgres,
	database.DialectMySQL:    inspectMySQL,
	database.DialectSQLite:   inspectSQLite,
}

// Inspector implements Reader over the registry's engines.
type Inspector struct {
	engines EngineSource
	timeout time.Duration
	log     *logger.Logger
}

var _ Reader = (*Inspector)(nil)

// Option configures an Inspector.
type Option func(*Inspector)

// WithTimeout replaces DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(i *Inspector) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithLogger sets the inspector logger.
func WithLogger(l *logger.Logger) Option {
	return func(i *Inspector) { i.log = l }
}

// New returns an Inspector drawing engines from engines.
func New(engines EngineSource, opts ...Option) *Inspector {
	i := &Inspector{engines: engines, timeout: DefaultTimeout, log: logger.Nop()}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Inspect builds a Snapshot of conn on one pooled session.
func (i *Inspector) Inspect(ctx context.Context, conn *database.Connection) (*Snapshot, error) {
	if conn == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "connection is required")
	}
	introspect, ok := introspectors[conn.Dialect]
	if !ok {
		return nil, errs.New(errs.ErrKindConfig, "schema introspection is not supported for dialect "+conn.Dialect.String())
	}

	log := i.log.ForConnection(conn.ID, conn.Dialect.String())

	eng, err := i.engines.GetEngine(ctx, conn)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	sess, err := eng.Acquire(ctx)
	if err != nil {
		return nil, failed(ctx, err)
	}
	if err := sess.SetStatementTimeout(ctx, i.timeout); err != nil {
		sess.Discard()
		return nil, failed(ctx, err)
	}

	tables, err := introspect(ctx, &catalog{sess: sess, log: log})
	if (err == nil || errs.IsQueryFailed(err)) && ctx.Err() == nil {
		sess.Release()
	} else {
		sess.Discard()
	}
	if err != nil {
		log.ErrorWith("schema introspection failed", err, nil)
		return nil, failed(ctx, err)
	}

	log.With().
		Int("tables", len(tables)).
		Int64(logger.FieldDurationMs, time.Since(start).Milliseconds()).
		Logger().
		Info("schema introspected")

	return &Snapshot{
		ConnectionID: conn.ID,
		Dialect:      conn.Dialect.String(),
		Tables:       tables,
	}, nil
}

// failed classifies an introspection error, preferring the deadline when it
// has passed and sanitizing the message that leaves the process.
func failed(ctx context.Context, err error) error {
	if ce := database.ContextError(ctx.Err(), "schema introspection timed out"); ce != nil {
		ce.Cause = err
		return ce
	}
	kind := errs.KindOf(err)
	if kind == errs.ErrKindUnknown {
		kind = errs.ErrKindQueryFailed
	}
	return errs.Wrap(kind, "schema introspection failed: "+errs.PublicMessage(err), err)
}

// catalog runs metadata queries on a checked-out session.
type catalog struct {
	sess database.Session
	log  *logger.Logger
}

// query runs q and returns every row as driver values.
func (c *catalog) query(ctx context.Context, q string, args ...any) ([][]any, error) {
	cur, err := c.sess.Run(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var rows [][]any
	for cur.Next() {
		vals, err := cur.Values()
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan catalog row", err)
		}
		rows = append(rows, vals)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return rows, cur.Close()
}
