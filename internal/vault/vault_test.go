package vault

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"github.com/koustreak/vizly/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, opts ...Option) *Vault {
	t.Helper()
	v, err := New("master-secret", "install-salt-7f3a", opts...)
	require.NoError(t, err)
	return v
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		salt   string
		opts   []Option
	}{
		{name: "empty secret", secret: "", salt: "s"},
		{name: "empty salt", secret: "m", salt: ""},
		{name: "too few iterations", secret: "m", salt: "s", opts: []Option{WithIterations(1000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.secret, tt.salt, tt.opts...)
			require.Error(t, err)
			assert.True(t, errs.IsConfig(err))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	v := newTestVault(t)

	for _, plain := range []string{"a", "hunter2", "päßwörd ✓", string(bytes.Repeat([]byte("x"), 16)), string(bytes.Repeat([]byte("y"), 1000))} {
		token, err := v.Encrypt(plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, token)

		got, err := v.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEncrypt_EmptyIsSentinel(t *testing.T) {
	v := newTestVault(t)

	token, err := v.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, token)

	plain, err := v.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt("same")
	require.NoError(t, err)
	b, err := v.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_Failures(t *testing.T) {
	v := newTestVault(t)
	token, err := v.Encrypt("hunter2")
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-40] ^= 0x01
	tampered := base64.URLEncoding.EncodeToString(raw)

	other, err := New("other-secret", "install-salt-7f3a")
	require.NoError(t, err)

	tests := []struct {
		name  string
		vault *Vault
		token string
	}{
		{name: "plaintext", vault: v, token: "hunter2"},
		{name: "not base64", vault: v, token: "%%%"},
		{name: "tampered", vault: v, token: tampered},
		{name: "wrong key", vault: other, token: token},
		{name: "truncated", vault: v, token: token[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.vault.Decrypt(tt.token)
			require.Error(t, err)
			assert.True(t, errs.IsDecryption(err))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDeriveKey_SaltMatters(t *testing.T) {
	a := DeriveKey([]byte("secret"), []byte("salt-a"), MinIterations)
	b := DeriveKey([]byte("secret"), []byte("salt-b"), MinIterations)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, DeriveKey([]byte("secret"), []byte("salt-a"), MinIterations))
}

// Reference token from the Fernet specification's test vectors.
func TestDecrypt_FernetCompatible(t *testing.T) {
	rawKey, err := base64.URLEncoding.DecodeString("cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4=")
	require.NoError(t, err)

	v := &Vault{}
	copy(v.key[:], rawKey)

	plain, err := v.Decrypt("gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA==")
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)
}

func TestEncrypt_TokenFraming(t *testing.T) {
	v := newTestVault(t)
	before := time.Now().Unix()

	token, err := v.Encrypt("hello")
	require.NoError(t, err)
	assert.True(t, looksLikeToken(token))

	raw, err := base64.URLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Equal(t, tokenVersion, raw[0])
	assert.GreaterOrEqual(t, int64(binary.BigEndian.Uint64(raw[1:9])), before)
	assert.Len(t, raw, minTokenSize)
}

func TestDecrypt_OldTokensDoNotExpire(t *testing.T) {
	v := newTestVault(t)
	old, err := v.Encrypt("hunter2")
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(old)
	require.NoError(t, err)
	// Re-sign the body with a timestamp from 1985.
	key := v.key
	body := raw[:len(raw)-32]
	binary.BigEndian.PutUint64(body[1:9], 499162800)
	mac := hmac.New(sha256.New, key[:16])
	mac.Write(body)
	resigned := base64.URLEncoding.EncodeToString(mac.Sum(body))

	plain, err := v.Decrypt(resigned)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestMigrate(t *testing.T) {
	t.Run("token passes through", func(t *testing.T) {
		v := newTestVault(t)
		token, err := v.Encrypt("pw")
		require.NoError(t, err)

		got, migrated, err := v.Migrate(token)
		require.NoError(t, err)
		assert.False(t, migrated)
		assert.Equal(t, token, got)
	})

	t.Run("plaintext rejected by default", func(t *testing.T) {
		v := newTestVault(t)
		_, migrated, err := v.Migrate("legacy-pw")
		require.Error(t, err)
		assert.False(t, migrated)
		assert.True(t, errs.IsDecryption(err))
	})

	t.Run("plaintext re-encrypted when opted in", func(t *testing.T) {
		v := newTestVault(t, WithLegacyPlaintext(true))
		got, migrated, err := v.Migrate("legacy-pw")
		require.NoError(t, err)
		assert.True(t, migrated)

		plain, err := v.Decrypt(got)
		require.NoError(t, err)
		assert.Equal(t, "legacy-pw", plain)
	})

	t.Run("foreign token never treated as plaintext", func(t *testing.T) {
		other, err := New("other-secret", "install-salt-7f3a")
		require.NoError(t, err)
		foreign, err := other.Encrypt("pw")
		require.NoError(t, err)

		v := newTestVault(t, WithLegacyPlaintext(true))
		_, migrated, err := v.Migrate(foreign)
		require.Error(t, err)
		assert.False(t, migrated)
	})
}
