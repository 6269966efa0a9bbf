// Package registry owns the live connection pools, one per connection
// configuration.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
	"golang.org/x/sync/singleflight"
)

// cacheKey identifies one configuration of a connection. Editing the
// connection moves updated_at and therefore the key.
type cacheKey struct {
	id      string
	updated int64
}

func keyFor(c *database.Connection) cacheKey {
	return cacheKey{id: c.ID, updated: c.UpdatedAt.UnixNano()}
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s@%d", k.id, k.updated)
}

// EngineHook observes engine creation.
type EngineHook func(conn *database.Connection, eng database.Engine)

// Registry caches engines by (connection id, updated_at). It is safe for
// concurrent use; concurrent requests for the same key share one build.
type Registry struct {
	cipher  database.Cipher
	openers map[database.Dialect]database.Opener
	pool    database.PoolConfig
	log     *logger.Logger
	onNew   EngineHook

	mu      sync.Mutex
	engines map[cacheKey]database.Engine
	current map[string]cacheKey
	closed  bool

	builds  singleflight.Group
	closing sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithPoolConfig sets the pool bounds used for every engine.
func WithPoolConfig(pc database.PoolConfig) Option {
	return func(r *Registry) { r.pool = pc }
}

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithEngineHook registers fn to run after each new engine is cached.
func WithEngineHook(fn EngineHook) Option {
	return func(r *Registry) { r.onNew = fn }
}

// New returns an empty registry. openers maps each supported dialect to the
// function that builds its engine.
func New(cipher database.Cipher, openers map[database.Dialect]database.Opener, opts ...Option) *Registry {
	r := &Registry{
		cipher:  cipher,
		openers: openers,
		pool:    database.DefaultPoolConfig(),
		log:     logger.Nop(),
		engines: make(map[cacheKey]database.Engine),
		current: make(map[string]cacheKey),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// GetEngine returns the engine for conn's current configuration, building
// it on first use. A record older than the one already cached is refused
// rather than resurrecting a retired pool.
func (r *Registry) GetEngine(ctx context.Context, conn *database.Connection) (database.Engine, error) {
	if conn == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "connection is required")
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	key := keyFor(conn)
	if eng, done, err := r.lookup(key); done {
		return eng, err
	}

	ch := r.builds.DoChan(key.String(), func() (any, error) {
		if eng, done, err := r.lookup(key); done {
			return eng, err
		}
		// Every waiter shares this build, so it must not end with the
		// caller that happened to start it.
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.connectTimeout())
		defer cancel()
		return r.build(bctx, key, conn.Clone())
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(database.Engine), nil
	case <-ctx.Done():
		return nil, database.ContextError(ctx.Err(), "gave up waiting for connection pool")
	}
}

func (r *Registry) connectTimeout() time.Duration {
	if r.pool.ConnectTimeout > 0 {
		return r.pool.ConnectTimeout
	}
	return database.DefaultPoolConfig().ConnectTimeout
}

func errStale() error {
	return errs.New(errs.ErrKindInvalidInput, "connection record is stale")
}

// lookup reports done when the cache alone decides the answer.
func (r *Registry) lookup(key cacheKey) (eng database.Engine, done bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, true, errs.New(errs.ErrKindConnectionFailed, "connection registry is shut down")
	}
	if eng, ok := r.engines[key]; ok {
		return eng, true, nil
	}
	if cur, ok := r.current[key.id]; ok && cur.updated > key.updated {
		return nil, true, errStale()
	}
	return nil, false, nil
}

func (r *Registry) build(ctx context.Context, key cacheKey, conn *database.Connection) (database.Engine, error) {
	log := r.log.ForConnection(conn.ID, conn.Dialect.String())

	open, ok := r.openers[conn.Dialect]
	if !ok {
		return nil, errs.New(errs.ErrKindConfig, "unsupported dialect: "+conn.Dialect.String())
	}

	password, err := conn.PlaintextPassword(r.cipher)
	if err != nil {
		log.ErrorWith("stored credential could not be decrypted", err, nil)
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "connection credential is unavailable", err)
	}

	eng, err := open(ctx, conn, password, r.pool)
	if err != nil {
		log.ErrorWith("failed to build engine", err, nil)
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.closeAsync(eng, log)
		return nil, errs.New(errs.ErrKindConnectionFailed, "connection registry is shut down")
	}
	// A newer configuration was cached while this one was being built.
	if cur, ok := r.current[key.id]; ok && cur.updated > key.updated {
		r.mu.Unlock()
		r.closeAsync(eng, log)
		return nil, errStale()
	}
	var retired database.Engine
	if old, ok := r.current[key.id]; ok && old != key {
		retired = r.engines[old]
		delete(r.engines, old)
	}
	r.engines[key] = eng
	r.current[key.id] = key
	r.mu.Unlock()

	if retired != nil {
		log.Info("connection changed, retiring previous engine")
		r.closeAsync(retired, log)
	}
	log.With().Int("max_open", eng.Stats().MaxOpen).Logger().Debug("engine created")
	if r.onNew != nil {
		r.onNew(conn, eng)
	}
	return eng, nil
}

// Invalidate drops the cached engine for id, if any. In-flight sessions
// finish; the pool closes once they are released.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	key, ok := r.current[id]
	var eng database.Engine
	if ok {
		eng = r.engines[key]
		delete(r.engines, key)
		delete(r.current, id)
	}
	r.mu.Unlock()

	if eng != nil {
		r.closeAsync(eng, r.log.With().Str(logger.FieldConnectionID, id).Logger())
	}
}

// CloseAll retires every engine and refuses further lookups. It waits for
// pools to drain until ctx is done.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	engines := r.engines
	r.engines = make(map[cacheKey]database.Engine)
	r.current = make(map[string]cacheKey)
	r.mu.Unlock()

	for key, eng := range engines {
		r.closeAsync(eng, r.log.With().Str(logger.FieldConnectionID, key.id).Logger())
	}

	done := make(chan struct{})
	go func() {
		r.closing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.ErrKindTimeout, "engines did not drain before shutdown deadline", ctx.Err())
	}
}

// Len reports how many engines are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Stats returns pool counters for the cached engine of id.
func (r *Registry) Stats(id string) (database.PoolStats, bool) {
	r.mu.Lock()
	key, ok := r.current[id]
	eng := r.engines[key]
	r.mu.Unlock()

	if !ok || eng == nil {
		return database.PoolStats{}, false
	}
	return eng.Stats(), true
}

// closeAsync closes eng off the caller's goroutine. Close blocks until
// checked-out sessions come back, which must not hold up lookups.
func (r *Registry) closeAsync(eng database.Engine, log *logger.Logger) {
	r.closing.Add(1)
	go func() {
		defer r.closing.Done()
		eng.Close()
		log.Debug("engine closed")
	}()
}
