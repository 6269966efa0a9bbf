package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockEngine(t *testing.T) (*SQLEngine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	eng := NewSQLEngine(db, DialectMySQL, SQLOptions{
		TimeoutStatement: func(ms int64) string {
			return fmt.Sprintf("SET SESSION max_execution_time = %d", ms)
		},
		MapError: func(err error, msg string) error {
			return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
		},
		PrePing: true,
	})
	return eng, mock
}

func TestSQLEngine_RunSelect(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("ada")).
			AddRow(int64(2), nil))

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	cur, err := sess.Run(ctx, "SELECT id, name FROM users")
	require.NoError(t, err)

	cols := cur.Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "name", cols[1].Name)

	rows, capped, err := ReadRows(cur, 10)
	require.NoError(t, err)
	require.NoError(t, cur.Close())

	assert.False(t, capped)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "ada"},
		{"id": int64(2), "name": nil},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLEngine_RunExecReportsAffectedRows(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = 'paid'")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	cur, err := sess.Run(ctx, "UPDATE orders SET status = 'paid'")
	require.NoError(t, err)
	assert.Empty(t, cur.Columns())
	assert.False(t, cur.Next())
	require.NoError(t, cur.Close())
	assert.Equal(t, int64(3), cur.RowsAffected())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLEngine_RunMapsDriverErrors(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error near broken"))

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	_, err = sess.Run(ctx, "SELECT broken")
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
}

func TestSQLEngine_SetStatementTimeout(t *testing.T) {
	eng, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SET SESSION max_execution_time = 1500")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sess, err := eng.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	require.NoError(t, sess.SetStatementTimeout(ctx, 1500*time.Millisecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLEngine_NoNativeTimeoutIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eng := NewSQLEngine(db, DialectSQLite, SQLOptions{
		MapError: func(err error, msg string) error { return err },
	})

	sess, err := eng.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	require.NoError(t, sess.SetStatementTimeout(context.Background(), time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLEngine_ReleaseKeepsSessionIdle(t *testing.T) {
	eng, _ := newMockEngine(t)

	sess, err := eng.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Stats().InUse)

	sess.Release()
	sess.Release()

	stats := eng.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
}

func TestSQLEngine_DiscardClosesSession(t *testing.T) {
	eng, mock := newMockEngine(t)

	sess, err := eng.Acquire(context.Background())
	require.NoError(t, err)

	mock.ExpectClose()
	sess.Discard()

	stats := eng.Stats()
	assert.Equal(t, 0, stats.Open)
	assert.Equal(t, 0, stats.Idle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadRows_Capping(t *testing.T) {
	tests := []struct {
		name       string
		available  int
		limit      int
		wantRows   int
		wantCapped bool
	}{
		{name: "fewer than cap", available: 1, limit: 3, wantRows: 1, wantCapped: false},
		{name: "exactly cap", available: 3, limit: 3, wantRows: 3, wantCapped: true},
		{name: "cap minus one", available: 2, limit: 3, wantRows: 2, wantCapped: false},
		{name: "more than cap", available: 10, limit: 3, wantRows: 3, wantCapped: true},
		{name: "empty", available: 0, limit: 3, wantRows: 0, wantCapped: false},
		{name: "unlimited", available: 4, limit: 0, wantRows: 4, wantCapped: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, mock := newMockEngine(t)
			ctx := context.Background()

			rs := sqlmock.NewRows([]string{"n"})
			for i := 0; i < tt.available; i++ {
				rs.AddRow(int64(i))
			}
			mock.ExpectQuery("SELECT n FROM numbers").WillReturnRows(rs)

			sess, err := eng.Acquire(ctx)
			require.NoError(t, err)
			defer sess.Release()

			cur, err := sess.Run(ctx, "SELECT n FROM numbers")
			require.NoError(t, err)
			defer cur.Close()

			rows, capped, err := ReadRows(cur, tt.limit)
			require.NoError(t, err)
			assert.NotNil(t, rows)
			assert.Len(t, rows, tt.wantRows)
			assert.Equal(t, tt.wantCapped, capped)
		})
	}
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"SHOW TABLES", true},
		{"DESC users", true},
		{"EXPLAIN SELECT 1", true},
		{"PRAGMA table_info(\"users\")", true},
		{"INSERT INTO t VALUES (1) RETURNING id", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET x = 1", false},
		{"DELETE FROM t", false},
		{"-- note\nSELECT 1", true},
		{"-- one\r\n  -- two\n(SELECT 1)", true},
		{"/* c */ SELECT 1", true},
		{"/* a */\n/* b */WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"-- note\nDELETE FROM t", false},
		{"-- only a comment", false},
		{"/* unterminated SELECT 1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnsRows(tt.query))
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "abc", NormalizeValue([]byte("abc")))
	assert.Equal(t, int64(5), NormalizeValue(int64(5)))
	assert.Nil(t, NormalizeValue(nil))

	id := [16]byte{0x12, 0x3e, 0x45, 0x67, 0xe8, 0x9b, 0x12, 0xd3, 0xa4, 0x56, 0x42, 0x66, 0x14, 0x17, 0x40, 0x00}
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", NormalizeValue(id))
}
