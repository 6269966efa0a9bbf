package mysql

import (
	"database/sql"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
)

// configurePool applies pool settings. Idle connections are capped at the
// base size; the overflow is closed as soon as it is returned.
func configurePool(db *sql.DB, pc database.PoolConfig) {
	db.SetMaxOpenConns(pc.MaxOpen())
	db.SetMaxIdleConns(pc.MaxSize)
	db.SetConnMaxLifetime(pc.Recycle)
	db.SetConnMaxIdleTime(pc.MaxIdleTime)
}

// BuildDSN renders the go-sql-driver DSN for conn. Values are escaped by
// the driver's own formatter rather than string concatenation.
func BuildDSN(conn *database.Connection, password string, pc database.PoolConfig) (string, error) {
	cfg := gomysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(conn.EffectivePort()))
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Timeout = pc.ConnectTimeout
	cfg.MultiStatements = false
	if err := cfg.Apply(gomysql.Charset("utf8mb4", "utf8mb4_unicode_ci")); err != nil {
		return "", errs.Wrap(errs.ErrKindConfig, "invalid mysql charset", err)
	}
	if conn.UseTLS {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN(), nil
}
