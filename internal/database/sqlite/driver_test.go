package sqlite

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFixture writes a small database file and returns its path.
func newFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.db")
	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
		INSERT INTO users (name) VALUES ('ada'), ('grace'), ('linus');`)
	require.NoError(t, err)
	return path
}

func sqliteConn(path string) *database.Connection {
	return &database.Connection{ID: "lite", Dialect: database.DialectSQLite, Database: path}
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file:/data/app.db?_pragma=busy_timeout%285000%29&mode=rw", DSN("/data/app.db", false))
	assert.Equal(t, "file:/data/my%20app.db?_pragma=busy_timeout%285000%29&mode=ro", DSN("/data/my app.db", true))
	assert.Equal(t, ":memory:", DSN(":memory:", false))
}

func TestOpen_SelectOne(t *testing.T) {
	path := newFixture(t, t.TempDir())
	ctx := context.Background()

	eng, err := Open(ctx, sqliteConn(path), "", database.DefaultPoolConfig())
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, database.DialectSQLite, eng.Dialect())

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	require.NoError(t, sess.SetStatementTimeout(ctx, time.Second), "no native timeout means no-op")

	cur, err := sess.Run(ctx, "SELECT 1")
	require.NoError(t, err)
	rows, capped, err := database.ReadRows(cur, 10)
	require.NoError(t, err)
	require.NoError(t, cur.Close())

	require.Len(t, cur.Columns(), 1)
	assert.Equal(t, "1", cur.Columns()[0].Name)
	assert.Equal(t, []map[string]any{{"1": int64(1)}}, rows)
	assert.False(t, capped)
}

func TestOpen_WritesReportAffectedRows(t *testing.T) {
	path := newFixture(t, t.TempDir())
	ctx := context.Background()

	eng, err := Open(ctx, sqliteConn(path), "", database.DefaultPoolConfig())
	require.NoError(t, err)
	defer eng.Close()

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	cur, err := sess.Run(ctx, "UPDATE users SET name = upper(name) WHERE id > 1")
	require.NoError(t, err)
	require.NoError(t, cur.Close())
	assert.Equal(t, int64(2), cur.RowsAffected())
}

func TestOpen_IsUnpooled(t *testing.T) {
	path := newFixture(t, t.TempDir())
	ctx := context.Background()

	eng, err := Open(ctx, sqliteConn(path), "", database.DefaultPoolConfig())
	require.NoError(t, err)
	defer eng.Close()

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	sess.Release()

	assert.Equal(t, 0, eng.Stats().Idle)
	assert.Equal(t, 0, eng.Stats().Open)
}

func TestOpen_MissingFileFailsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "absent.db")

	eng, err := Open(ctx, sqliteConn(path), "", database.DefaultPoolConfig())
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Ping(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a missing database must not be created")
}

func TestMapError_SyntaxIsQueryFailure(t *testing.T) {
	path := newFixture(t, t.TempDir())
	ctx := context.Background()

	eng, err := Open(ctx, sqliteConn(path), "", database.DefaultPoolConfig())
	require.NoError(t, err)
	defer eng.Close()

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	_, err = sess.Run(ctx, "SELECT * FROM nope")
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
}

// --- remote databases ---

type fileObject struct {
	*os.File
}

func (o fileObject) Info() *filestore.ObjectInfo { return &filestore.ObjectInfo{Key: o.Name()} }

type dirStore struct {
	root string
	gets int
}

func (s *dirStore) Ping(context.Context) error { return nil }
func (s *dirStore) Close() error               { return nil }

func (s *dirStore) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	s.gets++
	f, err := os.Open(filepath.Join(s.root, bucket, key))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, "remote database not found", err)
	}
	return fileObject{f}, nil
}

func (s *dirStore) StatObject(context.Context, string, string) (*filestore.ObjectInfo, error) {
	return nil, errs.New(errs.ErrKindUnknown, "not used")
}

var _ io.Closer = fileObject{}

func TestOpener_RemoteDatabase(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "warehouse"), 0o700))
	src := newFixture(t, filepath.Join(root, "warehouse"))
	require.True(t, strings.HasSuffix(src, "fixture.db"))

	store := &dirStore{root: root}
	cache := t.TempDir()
	opener := &Opener{Store: store, CacheDir: cache}

	conn := sqliteConn("s3://warehouse/fixture.db")
	conn.UpdatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	eng, err := opener.Open(ctx, conn, "", database.DefaultPoolConfig())
	require.NoError(t, err)
	defer eng.Close()

	_, err = os.Stat(CachePath(cache, conn))
	require.NoError(t, err)

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	cur, err := sess.Run(ctx, "SELECT count(*) AS n FROM users")
	require.NoError(t, err)
	rows, _, err := database.ReadRows(cur, 0)
	require.NoError(t, err)
	require.NoError(t, cur.Close())
	assert.Equal(t, int64(3), rows[0]["n"])

	_, err = sess.Run(ctx, "DELETE FROM users")
	require.Error(t, err, "remote copies are read-only")

	// Same updated_at reuses the cached copy.
	eng2, err := opener.Open(ctx, conn, "", database.DefaultPoolConfig())
	require.NoError(t, err)
	eng2.Close()
	assert.Equal(t, 1, store.gets)
}

func TestOpener_RemoteNeedsStore(t *testing.T) {
	_, err := Open(context.Background(), sqliteConn("s3://warehouse/fixture.db"), "", database.DefaultPoolConfig())
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))

	_, err = (&Opener{Store: &dirStore{}}).Open(context.Background(), sqliteConn("s3://warehouse"), "", database.DefaultPoolConfig())
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestCachePath(t *testing.T) {
	conn := &database.Connection{ID: "../etc/passwd", UpdatedAt: time.Unix(0, 42)}
	assert.Equal(t, filepath.Join("/cache", "___etc_passwd-42.db"), CachePath("/cache", conn))
}
