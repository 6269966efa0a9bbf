// Package sqlite provides the embedded-file engine. SQLite is not pooled:
// every session opens the file afresh and closes it on release.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/filestore"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

const (
	driverName    = "sqlite"
	busyTimeoutMs = 5000
	memoryName    = ":memory:"
)

// Opener resolves a connection's database location to a local file and
// opens an engine over it. Locations of the form s3://bucket/key are
// fetched through Store into CacheDir first.
type Opener struct {
	Store    filestore.Store
	CacheDir string
}

// Open is the local-files-only opener.
var Open database.Opener = (&Opener{}).Open

// Open implements database.Opener. A local file is not touched until the
// first Acquire; a remote one is downloaded here.
func (o *Opener) Open(ctx context.Context, conn *database.Connection, _ string, pc database.PoolConfig) (database.Engine, error) {
	path, readOnly, err := o.resolve(ctx, conn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, DSN(path, readOnly))
	if err != nil {
		return nil, mapError(err, "invalid sqlite location")
	}
	db.SetMaxIdleConns(0)
	if n := pc.MaxOpen(); n > 0 {
		db.SetMaxOpenConns(n)
	}
	return NewEngine(db), nil
}

// NewEngine wraps an opened *sql.DB. There is no native statement timeout,
// so the caller's deadline is the only bound.
func NewEngine(db *sql.DB) *database.SQLEngine {
	return database.NewSQLEngine(db, database.DialectSQLite, database.SQLOptions{
		MapError: mapError,
	})
}

// DSN renders a modernc.org/sqlite URI for path.
func DSN(path string, readOnly bool) string {
	if path == memoryName {
		return memoryName
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMs))
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("mode", "rw")
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}

func (o *Opener) resolve(ctx context.Context, conn *database.Connection) (path string, readOnly bool, err error) {
	if !filestore.IsObjectURL(conn.Database) {
		return conn.Database, false, nil
	}

	bucket, key, ok := filestore.ParseObjectURL(conn.Database)
	if !ok {
		return "", false, errs.New(errs.ErrKindConfig, "malformed remote database location")
	}
	if o.Store == nil {
		return "", false, errs.New(errs.ErrKindConfig, "remote sqlite databases need a configured filestore")
	}

	dst := CachePath(o.cacheDir(), conn)
	if err := filestore.Download(ctx, o.Store, bucket, key, dst); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

func (o *Opener) cacheDir() string {
	if o.CacheDir != "" {
		return o.CacheDir
	}
	return filepath.Join(os.TempDir(), "vizly-sqlite")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// CachePath names the local copy of a remote database. It changes with
// updated_at, so editing the connection fetches a fresh copy.
func CachePath(dir string, conn *database.Connection) string {
	id := unsafeFileChars.ReplaceAllString(conn.ID, "_")
	return filepath.Join(dir, fmt.Sprintf("%s-%d.db", id, conn.UpdatedAt.UnixNano()))
}
