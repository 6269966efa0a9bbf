// Package dbtest provides in-memory Engine, Session and Cursor fakes that
// record pool lifecycle events for tests.
package dbtest

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
)

// RunFunc scripts what a session returns for a query. timeout is the
// statement timeout last set on the session, zero if none.
type RunFunc func(ctx context.Context, query string, timeout time.Duration) (database.Cursor, error)

// Engine is a fake pool. Sessions are counted, never dialled.
type Engine struct {
	DialectName database.Dialect
	Conn        *database.Connection
	Password    string
	MaxOpen     int
	Run         RunFunc
	AcquireErr  error

	mu        sync.Mutex
	inUse     int
	idle      int
	released  int
	discarded int
	closed    bool
}

// NewEngine returns a fake engine for dialect that answers every query
// with run.
func NewEngine(dialect database.Dialect, run RunFunc) *Engine {
	return &Engine{DialectName: dialect, MaxOpen: 15, Run: run}
}

// Opener returns a database.Opener that records its arguments on a fresh
// engine built by mk and reports it to created.
func Opener(mk func() *Engine, created func(*Engine)) database.Opener {
	return func(_ context.Context, conn *database.Connection, password string, pc database.PoolConfig) (database.Engine, error) {
		e := mk()
		e.Conn = conn
		e.Password = password
		e.MaxOpen = pc.MaxOpen()
		if created != nil {
			created(e)
		}
		return e, nil
	}
}

func (e *Engine) Dialect() database.Dialect { return e.DialectName }

func (e *Engine) Acquire(ctx context.Context) (database.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to open session", err)
	}
	if e.AcquireErr != nil {
		return nil, e.AcquireErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errs.New(errs.ErrKindConnectionFailed, "pool is closed")
	}
	if e.idle > 0 {
		e.idle--
	}
	e.inUse++
	return &Session{engine: e}, nil
}

func (e *Engine) Ping(context.Context) error { return nil }

func (e *Engine) Stats() database.PoolStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return database.PoolStats{Open: e.inUse + e.idle, InUse: e.inUse, Idle: e.idle, MaxOpen: e.MaxOpen}
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.idle = 0
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Released and Discarded count how sessions were handed back.
func (e *Engine) Released() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func (e *Engine) Discarded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discarded
}

// Session is a fake checked-out connection.
type Session struct {
	engine  *Engine
	timeout time.Duration
	done    bool
}

func (s *Session) SetStatementTimeout(_ context.Context, d time.Duration) error {
	s.timeout = d
	return nil
}

func (s *Session) Run(ctx context.Context, query string, _ ...any) (database.Cursor, error) {
	if s.engine.Run == nil {
		return Rows(nil), nil
	}
	return s.engine.Run(ctx, query, s.timeout)
}

func (s *Session) Release() {
	s.finish(false)
}

func (s *Session) Discard() {
	s.finish(true)
}

func (s *Session) finish(discard bool) {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	e.inUse--
	if discard {
		e.discarded++
		return
	}
	e.released++
	if !e.closed {
		e.idle++
	}
}
