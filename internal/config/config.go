// Package config loads vizly's settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/vizly/internal/audit"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/executor"
	"github.com/koustreak/vizly/internal/filestore"
	"github.com/koustreak/vizly/internal/schema"
	"github.com/koustreak/vizly/internal/vault"
)

// Config holds every vizly setting.
type Config struct {
	Log         LogConfig           `koanf:"log"`
	Vault       VaultConfig         `koanf:"vault"`
	Pool        database.PoolConfig `koanf:"pool"`
	Query       QueryConfig         `koanf:"query"`
	Server      ServerConfig        `koanf:"server"`
	Audit       AuditConfig         `koanf:"audit"`
	FileStore   filestore.Config    `koanf:"filestore"`
	Connections []ConnectionConfig  `koanf:"connections"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// VaultConfig holds the credential vault secrets. Neither value belongs in
// a checked-in file; set them through VIZLY_VAULT__MASTER_SECRET and
// VIZLY_VAULT__SALT.
type VaultConfig struct {
	MasterSecret         string `koanf:"master_secret"`
	Salt                 string `koanf:"salt"`
	Iterations           int    `koanf:"iterations"`
	AllowLegacyPlaintext bool   `koanf:"allow_legacy_plaintext"`
}

// QueryConfig bounds executions and introspections.
type QueryConfig struct {
	executor.Limits   `koanf:",squash"`
	IntrospectTimeout time.Duration `koanf:"introspect_timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuditConfig configures where execution records go besides the log.
type AuditConfig struct {
	Kafka audit.KafkaConfig `koanf:"kafka"`
}

// ConnectionConfig is one statically configured connection. Password is a
// vault token as produced by `vizly encrypt`.
type ConnectionConfig struct {
	ID       string `koanf:"id"`
	Name     string `koanf:"name"`
	Dialect  string `koanf:"dialect"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	UseTLS   bool   `koanf:"use_tls"`
}

// Connection converts c into a validated record stamped with now.
func (c ConnectionConfig) Connection(now time.Time) (*database.Connection, error) {
	dialect, err := database.ParseDialect(c.Dialect)
	if err != nil {
		return nil, err
	}
	conn := &database.Connection{
		ID:                c.ID,
		Name:              c.Name,
		Dialect:           dialect,
		Host:              c.Host,
		Port:              c.Port,
		Database:          c.Database,
		Username:          c.Username,
		EncryptedPassword: c.Password,
		UseTLS:            c.UseTLS,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if conn.Name == "" {
		conn.Name = conn.ID
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return conn, nil
}

// defaults is the lowest configuration layer.
func defaults() map[string]any {
	pool := database.DefaultPoolConfig()
	limits := executor.DefaultLimits()
	return map[string]any{
		"log.level":  "info",
		"log.format": "json",

		"vault.iterations":             vault.MinIterations,
		"vault.allow_legacy_plaintext": false,

		"pool.max_size":        pool.MaxSize,
		"pool.max_overflow":    pool.MaxOverflow,
		"pool.recycle":         pool.Recycle,
		"pool.max_idle_time":   pool.MaxIdleTime,
		"pool.connect_timeout": pool.ConnectTimeout,
		"pool.pre_ping":        pool.PrePing,

		"query.default_timeout":    limits.DefaultTimeout,
		"query.max_timeout":        limits.MaxTimeout,
		"query.default_max_rows":   limits.DefaultMaxRows,
		"query.export_max_rows":    limits.ExportMaxRows,
		"query.probe_timeout":      limits.ProbeTimeout,
		"query.grace":              limits.Grace,
		"query.rate_per_second":    limits.RatePerSecond,
		"query.burst":              1,
		"query.introspect_timeout": schema.DefaultTimeout,

		"server.addr":             ":8080",
		"server.shutdown_timeout": 15 * time.Second,

		"audit.kafka.batch_timeout": 100 * time.Millisecond,
		"audit.kafka.write_timeout": 10 * time.Second,

		"filestore.provider": string(filestore.ProviderMinIO),
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	var problems []string
	check := func(bad bool, msg string) {
		if bad {
			problems = append(problems, msg)
		}
	}

	check(c.Vault.MasterSecret == "", "vault.master_secret is required")
	check(c.Vault.Salt == "", "vault.salt is required")
	check(c.Vault.Iterations < vault.MinIterations,
		fmt.Sprintf("vault.iterations must be at least %d", vault.MinIterations))

	check(c.Pool.MaxSize <= 0, "pool.max_size must be positive")
	check(c.Pool.MaxOverflow < 0, "pool.max_overflow must not be negative")

	q := c.Query
	check(q.DefaultTimeout <= 0, "query.default_timeout must be positive")
	check(q.MaxTimeout < q.DefaultTimeout, "query.max_timeout must not be below query.default_timeout")
	check(q.DefaultMaxRows <= 0, "query.default_max_rows must be positive")
	check(q.ExportMaxRows < q.DefaultMaxRows, "query.export_max_rows must not be below query.default_max_rows")
	check(q.ProbeTimeout <= 0, "query.probe_timeout must be positive")
	check(q.IntrospectTimeout <= 0, "query.introspect_timeout must be positive")
	check(q.RatePerSecond < 0, "query.rate_per_second must not be negative")

	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		check(conn.ID == "", fmt.Sprintf("connections[%d].id is required", i))
		check(seen[conn.ID], fmt.Sprintf("connections[%d].id %q is duplicated", i, conn.ID))
		seen[conn.ID] = true
	}

	if len(problems) > 0 {
		return errs.New(errs.ErrKindConfig, "invalid configuration: "+strings.Join(problems, "; "))
	}
	return nil
}
