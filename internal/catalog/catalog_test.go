package catalog

import (
	"sync"
	"testing"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func newVault(t *testing.T, opts ...vault.Option) *vault.Vault {
	t.Helper()
	v, err := vault.New("master", "salt", opts...)
	require.NoError(t, err)
	return v
}

func pg(id string) *database.Connection {
	return &database.Connection{ID: id, Dialect: database.DialectPostgres, Host: "db", Database: "app"}
}

func TestCatalog_PutGetList(t *testing.T) {
	inv := &recordingInvalidator{}
	c := New(newVault(t), inv)

	created, err := c.Put(pg("b"))
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	_, err = c.Put(pg("a"))
	require.NoError(t, err)

	got, err := c.Get("b")
	require.NoError(t, err)
	got.Host = "mutated"
	again, _ := c.Get("b")
	assert.Equal(t, "db", again.Host, "callers get copies")

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, []string{"b", "a"}, inv.ids)
}

func TestCatalog_PutBumpsUpdatedAt(t *testing.T) {
	c := New(newVault(t), nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	first, err := c.Put(pg("a"))
	require.NoError(t, err)

	edited := pg("a")
	edited.Host = "db2"
	second, err := c.Put(edited)
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "same clock reading still moves updated_at")
}

func TestCatalog_PutValidates(t *testing.T) {
	c := New(newVault(t), nil)
	_, err := c.Put(&database.Connection{ID: "x", Dialect: "oracle"})
	assert.True(t, errs.IsConfig(err))
	_, err = c.Put(nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestCatalog_Delete(t *testing.T) {
	inv := &recordingInvalidator{}
	c := New(newVault(t), inv)
	_, err := c.Put(pg("a"))
	require.NoError(t, err)

	require.NoError(t, c.Delete("a"))
	_, err = c.Get("a")
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(c.Delete("a")))
	assert.Equal(t, []string{"a", "a"}, inv.ids)
}

func TestCatalog_RotatePassword(t *testing.T) {
	v := newVault(t)
	inv := &recordingInvalidator{}
	c := New(v, inv)
	before, err := c.Put(pg("a"))
	require.NoError(t, err)

	require.NoError(t, c.RotatePassword("a", "n3w"))

	after, err := c.Get("a")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.NotEqual(t, "n3w", after.EncryptedPassword)
	plain, err := after.PlaintextPassword(v)
	require.NoError(t, err)
	assert.Equal(t, "n3w", plain)
	assert.Len(t, inv.ids, 2)

	assert.True(t, errs.IsNotFound(c.RotatePassword("missing", "x")))
}

func TestCatalog_SeedMigratesLegacyPlaintext(t *testing.T) {
	v := newVault(t, vault.WithLegacyPlaintext(true))
	token, err := v.Encrypt("already")
	require.NoError(t, err)

	legacy := pg("legacy")
	legacy.EncryptedPassword = "plain-pass"
	current := pg("current")
	current.EncryptedPassword = token

	c := New(v, nil)
	require.NoError(t, c.Seed(legacy, current))

	got, err := c.Get("legacy")
	require.NoError(t, err)
	assert.NotEqual(t, "plain-pass", got.EncryptedPassword)
	plain, err := got.PlaintextPassword(v)
	require.NoError(t, err)
	assert.Equal(t, "plain-pass", plain)

	got, err = c.Get("current")
	require.NoError(t, err)
	assert.Equal(t, token, got.EncryptedPassword)
}

func TestCatalog_SeedKeepsUndecryptableRecord(t *testing.T) {
	v := newVault(t)
	bad := pg("bad")
	bad.EncryptedPassword = "plain-pass"

	c := New(v, nil)
	require.NoError(t, c.Seed(bad))

	got, err := c.Get("bad")
	require.NoError(t, err)
	_, err = got.PlaintextPassword(v)
	assert.True(t, errs.IsDecryption(err), "failure surfaces at use, not at load")
}

func TestCatalog_SeedRejectsInvalid(t *testing.T) {
	c := New(newVault(t), nil)
	err := c.Seed(&database.Connection{ID: "x", Dialect: database.DialectMySQL})
	assert.True(t, errs.IsConfig(err))
}
