package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
)

const applicationName = "vizly"

// buildPoolConfig turns a connection record and pool settings into a
// pgxpool config. Nothing here touches the network.
func buildPoolConfig(conn *database.Connection, password string, pc database.PoolConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildDSN(conn, password))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, "invalid postgres connection settings", err)
	}

	poolCfg.MaxConns = int32(pc.MaxOpen())
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = pc.Recycle
	poolCfg.MaxConnIdleTime = pc.MaxIdleTime
	poolCfg.ConnConfig.ConnectTimeout = pc.ConnectTimeout
	// Single round trip per statement; user SQL is never re-run so the
	// statement cache buys nothing.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if pc.PrePing {
		poolCfg.ShouldPing = func(context.Context, pgxpool.ShouldPingParams) bool { return true }
	}
	return poolCfg, nil
}

// BuildDSN constructs a keyword/value connection string. TLS is required
// when the record asks for it, otherwise the server decides.
func BuildDSN(conn *database.Connection, password string) string {
	sslMode := "prefer"
	if conn.UseTLS {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		quote(conn.Host), conn.EffectivePort(), quote(conn.Username), quote(password),
		quote(conn.Database), sslMode, applicationName,
	)
}

// quote escapes a value for the keyword/value format.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
