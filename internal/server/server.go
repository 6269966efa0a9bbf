// Package server exposes execution, introspection and connection tests
// over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/executor"
	"github.com/koustreak/vizly/internal/logger"
	"github.com/koustreak/vizly/internal/schema"
	"golang.org/x/sync/errgroup"
)

// Executor is the execution side the handlers need.
// *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
	TestConnection(ctx context.Context, conn *database.Connection) (*executor.ProbeResult, error)
}

// Catalog looks up stored connections. *catalog.Catalog satisfies it.
type Catalog interface {
	Get(id string) (*database.Connection, error)
	List() []*database.Connection
}

// Config wires a Server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Executor        Executor
	Schema          schema.Reader
	Catalog         Catalog
	Logger          *logger.Logger
}

// Server is the HTTP surface.
type Server struct {
	cfg     Config
	log     *logger.Logger
	handler http.Handler
}

// New builds the router for cfg.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{cfg: cfg, log: cfg.Logger}

	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)
	s.routes(r)
	s.handler = r
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve listens on cfg.Addr until ctx is cancelled, then shuts down
// gracefully. In-flight requests get ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.Wrap(errs.ErrKindUnknown, "http server failed", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.Debug("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger writes one line per request through the zerolog wrapper.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.HTTPEvent().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64(logger.FieldDurationMs, time.Since(start).Milliseconds()).
			Msg("http request")
	})
}
