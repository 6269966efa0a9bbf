package cli

import (
	"context"
	"errors"
	"time"

	"github.com/koustreak/vizly/internal/audit"
	"github.com/koustreak/vizly/internal/catalog"
	"github.com/koustreak/vizly/internal/config"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/database/mysql"
	"github.com/koustreak/vizly/internal/database/postgres"
	"github.com/koustreak/vizly/internal/database/sqlite"
	"github.com/koustreak/vizly/internal/executor"
	"github.com/koustreak/vizly/internal/filestore/minio"
	"github.com/koustreak/vizly/internal/logger"
	"github.com/koustreak/vizly/internal/registry"
	"github.com/koustreak/vizly/internal/schema"
	"github.com/koustreak/vizly/internal/vault"
	"github.com/spf13/cobra"
)

const closeTimeout = 10 * time.Second

// app holds the wired components one command invocation works with.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	vault    *vault.Vault
	registry *registry.Registry
	catalog  *catalog.Catalog
	executor *executor.Executor
	schema   *schema.Inspector

	closers []func() error
}

// newApp builds the vault, registry, catalog, executor and inspector for
// cfg. Anything opened before a failure is closed again.
func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	v, err := newVault(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, vault: v}
	if err := a.wire(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func newVault(cfg *config.Config, log *logger.Logger) (*vault.Vault, error) {
	return vault.New(cfg.Vault.MasterSecret, cfg.Vault.Salt,
		vault.WithIterations(cfg.Vault.Iterations),
		vault.WithLegacyPlaintext(cfg.Vault.AllowLegacyPlaintext),
		vault.WithLogger(log),
	)
}

func (a *app) wire() error {
	cfg, log := a.cfg, a.log

	lite := &sqlite.Opener{CacheDir: cfg.FileStore.CacheDir}
	if cfg.FileStore.Enabled() {
		store, err := minio.New(&cfg.FileStore)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		lite.Store = store
	}

	a.registry = registry.New(a.vault, map[database.Dialect]database.Opener{
		database.DialectPostgres: postgres.Open,
		database.DialectMySQL:    mysql.Open,
		database.DialectSQLite:   lite.Open,
	},
		registry.WithPoolConfig(cfg.Pool),
		registry.WithLogger(log),
		registry.WithEngineHook(func(conn *database.Connection, _ database.Engine) {
			log.ForConnection(conn.ID, conn.Dialect.String()).Debug("engine created")
		}),
	)

	conns := make([]*database.Connection, 0, len(cfg.Connections))
	now := time.Now()
	for _, cc := range cfg.Connections {
		conn, err := cc.Connection(now)
		if err != nil {
			return err
		}
		conns = append(conns, conn)
	}
	a.catalog = catalog.New(a.vault, a.registry, catalog.WithLogger(log))
	if err := a.catalog.Seed(conns...); err != nil {
		return err
	}

	recorders := []audit.Recorder{audit.NewLogRecorder(log)}
	if cfg.Audit.Kafka.Enabled() {
		kr, err := audit.NewKafkaRecorder(cfg.Audit.Kafka, log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, kr.Close)
		recorders = append(recorders, kr)
	}

	a.executor = executor.New(a.registry,
		executor.WithLimits(cfg.Query.Limits),
		executor.WithRecorder(audit.Multi(recorders...)),
		executor.WithLogger(log),
	)
	a.schema = schema.New(a.registry,
		schema.WithTimeout(cfg.Query.IntrospectTimeout),
		schema.WithLogger(log),
	)
	return nil
}

// Close disposes of every pooled engine, then the audit sink and the object
// store in reverse order of opening.
func (a *app) Close(ctx context.Context) error {
	var errList []error
	if a.registry != nil {
		if err := a.registry.CloseAll(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// withApp wires an app from the command's config, runs fn and closes the
// app afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	cfg, err := configFrom(ctx)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.ErrorWith("shutdown incomplete", err, nil)
		}
	}()

	return fn(ctx, a)
}
