// Package executor runs one SQL statement against a stored connection
// under a timeout and a row cap.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/vizly/internal/audit"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/guard"
	"github.com/koustreak/vizly/internal/logger"
	"golang.org/x/time/rate"
)

const probeStatement = "SELECT 1"

// EngineSource supplies pooled engines. *registry.Registry satisfies it.
type EngineSource interface {
	GetEngine(ctx context.Context, conn *database.Connection) (database.Engine, error)
}

// Request is one execution. Zero Timeout and MaxRows take the defaults.
type Request struct {
	Connection *database.Connection
	SQL        string
	Timeout    time.Duration
	MaxRows    int
	Export     bool
	Privileged bool
}

// Result is the outcome of a successful execution. For statements that
// return no rows, Columns and Rows are empty and RowCount is the number of
// affected rows.
type Result struct {
	Columns         []database.Column `json:"columns"`
	Rows            []map[string]any  `json:"rows"`
	RowCount        int64             `json:"row_count"`
	Truncated       bool              `json:"truncated"`
	MaxRows         int               `json:"max_rows"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
}

// ProbeResult reports a connectivity check.
type ProbeResult struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latency_ms"`
}

// Executor screens, runs and records statements. It is safe for
// concurrent use.
type Executor struct {
	engines EngineSource
	guard   *guard.Guard
	limits  Limits
	rec     audit.Recorder
	log     *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLimits replaces DefaultLimits.
func WithLimits(l Limits) Option {
	return func(e *Executor) { e.limits = l }
}

// WithGuard replaces the default statement guard.
func WithGuard(g *guard.Guard) Option {
	return func(e *Executor) { e.guard = g }
}

// WithRecorder sets where execution records go.
func WithRecorder(r audit.Recorder) Option {
	return func(e *Executor) { e.rec = r }
}

// WithLogger sets the executor logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// New returns an Executor drawing engines from engines.
func New(engines EngineSource, opts ...Option) *Executor {
	e := &Executor{
		engines:  engines,
		limits:   DefaultLimits(),
		rec:      audit.Nop(),
		log:      logger.Nop(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(e)
	}
	if e.guard == nil {
		e.guard = guard.New(guard.WithLogger(e.log))
	}
	return e
}

// Execute screens req.SQL, then runs it once on a pooled session. The
// statement is rejected before any connection is opened if the guard
// declines it. Every call, whatever its outcome, produces one audit record.
func (e *Executor) Execute(ctx context.Context, req Request) (res *Result, err error) {
	conn := req.Connection
	if conn == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "connection is required")
	}

	start := e.now()
	maxRows := e.limits.maxRows(req.MaxRows, req.Export)
	timeout := e.limits.timeout(req.Timeout)

	rec := audit.NewRecord(audit.KindExecute, conn.ID, conn.Dialect.String(), req.SQL, start)
	rec.Privileged = req.Privileged
	rec.MaxRows = maxRows
	defer func() {
		if res != nil {
			rec.RowCount = res.RowCount
			rec.Truncated = res.Truncated
		}
		rec.Finish(e.now(), err)
		e.rec.Record(context.WithoutCancel(ctx), rec)
	}()

	log := e.log.ForConnection(conn.ID, conn.Dialect.String()).
		With().
		Str(logger.FieldExecutionID, rec.ID).
		Logger()

	if err := e.guard.Validate(req.SQL, req.Privileged); err != nil {
		return nil, err
	}
	if err := e.throttle(ctx, conn.ID); err != nil {
		return nil, err
	}

	eng, err := e.engines.GetEngine(ctx, conn)
	if err != nil {
		return nil, err
	}

	res, err = e.run(ctx, eng, req.SQL, timeout, maxRows)
	if err != nil {
		log.ErrorWith("execution failed", err, map[string]any{"timeout_ms": timeout.Milliseconds()})
		return nil, public(err)
	}

	res.MaxRows = maxRows
	res.ExecutionTimeMs = e.now().Sub(start).Milliseconds()
	log.With().
		Int64("row_count", res.RowCount).
		Bool("truncated", res.Truncated).
		Int64(logger.FieldDurationMs, res.ExecutionTimeMs).
		Logger().
		Debug("execution completed")
	return res, nil
}

// TestConnection runs a trivial statement under the probe timeout. A
// reachable database gives OK; an unreachable one gives a result with OK
// false and a sanitized message. Only a malformed connection record is
// returned as an error.
func (e *Executor) TestConnection(ctx context.Context, conn *database.Connection) (*ProbeResult, error) {
	if conn == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "connection is required")
	}

	start := e.now()
	rec := audit.NewRecord(audit.KindProbe, conn.ID, conn.Dialect.String(), probeStatement, start)

	eng, err := e.engines.GetEngine(ctx, conn)
	if err == nil {
		_, err = e.run(ctx, eng, probeStatement, e.limits.ProbeTimeout, 0)
	}
	end := e.now()
	rec.Finish(end, err)
	e.rec.Record(context.WithoutCancel(ctx), rec)

	if err != nil && errs.ClassOf(err) == errs.ClassBadInput {
		return nil, err
	}

	probe := &ProbeResult{OK: err == nil, LatencyMs: end.Sub(start).Milliseconds()}
	if err != nil {
		e.log.With().Str(logger.FieldConnectionID, conn.ID).Err(err).Logger().Warn("connection test failed")
		probe.Message = errs.PublicMessage(err)
	} else {
		probe.Message = "connection successful"
	}
	return probe, nil
}

type outcome struct {
	res *Result
	err error
}

// run executes sql on a session of eng. The session is owned by a worker
// goroutine so that a deadline can be reported on time even when the
// driver does not return; the worker discards the session once it does.
func (e *Executor) run(ctx context.Context, eng database.Engine, sql string, timeout time.Duration, maxRows int) (*Result, error) {
	caps, err := eng.Dialect().Capabilities()
	if err != nil {
		return nil, err
	}

	deadline := timeout
	if caps.NativeTimeout {
		deadline += e.limits.Grace
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	sess, err := eng.Acquire(runCtx)
	if err != nil {
		return nil, err
	}
	if caps.NativeTimeout {
		if err := sess.SetStatementTimeout(runCtx, timeout); err != nil {
			sess.Discard()
			return nil, err
		}
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := collect(runCtx, sess, sql, maxRows)
		// A truncated result was abandoned mid-stream, so its session is
		// not reused either.
		truncated := res != nil && res.Truncated
		if reusable(err) && !truncated && runCtx.Err() == nil {
			sess.Release()
		} else {
			sess.Discard()
		}
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-runCtx.Done():
		return nil, database.ContextError(runCtx.Err(), "statement exceeded its time limit")
	}
}

// collect runs sql once and reads at most maxRows rows. Once the cap is
// hit the statement is cancelled, so closing the cursor does not read the
// rest of the result off the wire.
func collect(ctx context.Context, sess database.Session, sql string, maxRows int) (*Result, error) {
	ctx, abandon := context.WithCancel(ctx)
	defer abandon()

	cur, err := sess.Run(ctx, sql)
	if err != nil {
		return nil, err
	}

	cols := cur.Columns()
	if len(cols) == 0 {
		if err := cur.Close(); err != nil {
			return nil, err
		}
		return &Result{
			Columns:  []database.Column{},
			Rows:     []map[string]any{},
			RowCount: cur.RowsAffected(),
		}, nil
	}

	rows, capped, err := database.ReadRows(cur, maxRows)
	if err != nil {
		_ = cur.Close()
		return nil, err
	}
	if capped {
		abandon()
		_ = cur.Close()
	} else if err := cur.Close(); err != nil {
		return nil, err
	}
	return &Result{
		Columns:   cols,
		Rows:      rows,
		RowCount:  int64(len(rows)),
		Truncated: capped,
	}, nil
}

// reusable reports whether a session may go back to the pool after err.
// A plain statement failure leaves the session in a known state; anything
// else (timeouts, broken connections, unknown faults) does not.
func reusable(err error) bool {
	return err == nil || errs.IsQueryFailed(err)
}

// public re-labels err with its sanitized message, keeping the original
// as the cause for internal logs.
func public(err error) error {
	return &errs.Error{Kind: errs.KindOf(err), Message: errs.PublicMessage(err), Cause: err}
}

// throttle waits for the connection's rate limiter, if limiting is on.
func (e *Executor) throttle(ctx context.Context, id string) error {
	if e.limits.RatePerSecond <= 0 {
		return nil
	}
	if err := e.limiter(id).Wait(ctx); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "execution rate limit exceeded", err)
	}
	return nil
}

func (e *Executor) limiter(id string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[id]
	if !ok {
		burst := e.limits.Burst
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(e.limits.RatePerSecond), burst)
		e.limiters[id] = l
	}
	return l
}
