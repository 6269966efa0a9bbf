package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("VIZLY_VAULT__MASTER_SECRET", "s3cret")
	t.Setenv("VIZLY_VAULT__SALT", "install-salt")
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vizly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Vault.MasterSecret)
	assert.Equal(t, 100_000, cfg.Vault.Iterations)
	assert.False(t, cfg.Vault.AllowLegacyPlaintext)
	assert.Equal(t, database.DefaultPoolConfig(), cfg.Pool)
	assert.Equal(t, 30*time.Second, cfg.Query.DefaultTimeout)
	assert.Equal(t, 300*time.Second, cfg.Query.MaxTimeout)
	assert.Equal(t, 10_000, cfg.Query.DefaultMaxRows)
	assert.Equal(t, 50_000, cfg.Query.ExportMaxRows)
	assert.Equal(t, 10*time.Second, cfg.Query.IntrospectTimeout)
	assert.Equal(t, 5*time.Second, cfg.Query.ProbeTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Audit.Kafka.Enabled())
	assert.False(t, cfg.FileStore.Enabled())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
vault:
  master_secret: from-file
  salt: file-salt
pool:
  max_size: 8
query:
  default_timeout: 45s
  rate_per_second: 2.5
server:
  addr: ":9000"
audit:
  kafka:
    topic: executions
filestore:
  endpoint: minio:9000
  cache_dir: /var/cache/vizly
connections:
  - id: analytics
    dialect: postgres
    host: pg.internal
    database: analytics
    username: reader
    password: gAAAAAB-token
  - id: local
    dialect: sqlite
    database: /data/app.db
`)
	t.Setenv("VIZLY_LOG__LEVEL", "warn")
	t.Setenv("VIZLY_VAULT__MASTER_SECRET", "from-env")
	t.Setenv("VIZLY_AUDIT__KAFKA__BROKERS", "k1:9092, k2:9092")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("addr", ":8080", "")
	require.NoError(t, flags.Parse([]string{"--log-level=error"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level, "flags beat env")
	assert.Equal(t, "from-env", cfg.Vault.MasterSecret, "env beats file")
	assert.Equal(t, "file-salt", cfg.Vault.Salt)
	assert.Equal(t, ":9000", cfg.Server.Addr, "unset flags do not override")
	assert.Equal(t, 8, cfg.Pool.MaxSize)
	assert.Equal(t, 10, cfg.Pool.MaxOverflow, "defaults fill the rest")
	assert.Equal(t, 45*time.Second, cfg.Query.DefaultTimeout)
	assert.Equal(t, 2.5, cfg.Query.RatePerSecond)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.Kafka.Brokers)
	assert.True(t, cfg.Audit.Kafka.Enabled())
	assert.True(t, cfg.FileStore.Enabled())
	assert.Equal(t, "/var/cache/vizly", cfg.FileStore.CacheDir)

	require.Len(t, cfg.Connections, 2)
	assert.Equal(t, "gAAAAAB-token", cfg.Connections[0].Password)
	assert.Equal(t, "sqlite", cfg.Connections[1].Dialect)
}

func TestLoad_MissingFile(t *testing.T) {
	setSecrets(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestLoad_RequiresVaultSecrets(t *testing.T) {
	_, err := Load(writeFile(t, "log:\n  level: info\n"), nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
	assert.Contains(t, err.Error(), "vault.master_secret is required")
	assert.Contains(t, err.Error(), "vault.salt is required")
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		setSecrets(t)
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "low iterations", mutate: func(c *Config) { c.Vault.Iterations = 1000 }, want: "vault.iterations"},
		{name: "zero pool", mutate: func(c *Config) { c.Pool.MaxSize = 0 }, want: "pool.max_size"},
		{name: "zero timeout", mutate: func(c *Config) { c.Query.DefaultTimeout = 0 }, want: "query.default_timeout"},
		{name: "max below default", mutate: func(c *Config) { c.Query.MaxTimeout = time.Second }, want: "query.max_timeout"},
		{name: "zero rows", mutate: func(c *Config) { c.Query.DefaultMaxRows = 0 }, want: "query.default_max_rows"},
		{name: "export below default", mutate: func(c *Config) { c.Query.ExportMaxRows = 10 }, want: "query.export_max_rows"},
		{name: "duplicate connection", mutate: func(c *Config) {
			c.Connections = []ConnectionConfig{{ID: "a"}, {ID: "a"}}
		}, want: "is duplicated"},
		{name: "connection without id", mutate: func(c *Config) {
			c.Connections = []ConnectionConfig{{Dialect: "sqlite"}}
		}, want: "connections[0].id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsConfig(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConnectionConfig_Connection(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	conn, err := ConnectionConfig{
		ID:       "analytics",
		Dialect:  "PostgreSQL",
		Host:     "pg",
		Database: "analytics",
		Password: "token",
	}.Connection(now)
	require.NoError(t, err)
	assert.Equal(t, database.DialectPostgres, conn.Dialect)
	assert.Equal(t, "analytics", conn.Name)
	assert.Equal(t, "token", conn.EncryptedPassword)
	assert.Equal(t, now, conn.UpdatedAt)

	_, err = ConnectionConfig{ID: "x", Dialect: "oracle"}.Connection(now)
	assert.True(t, errs.IsConfig(err))

	_, err = ConnectionConfig{ID: "x", Dialect: "mysql", Database: "db"}.Connection(now)
	assert.True(t, errs.IsConfig(err), "mysql needs a host")
}
