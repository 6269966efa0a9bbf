// Package vault encrypts stored connection passwords.
//
// The key is derived with PBKDF2-SHA256 from a master secret and a salt that
// is unique per installation. Tokens are Fernet tokens, so credentials
// written by any Fernet implementation with the same derived key decrypt
// here unchanged.
//
// Usage:
//
//	v, err := vault.New(cfg.Vault.MasterSecret, cfg.Vault.Salt)
//	if err != nil { ... }
//	token, err := v.Encrypt("s3cret")
//	plain, err := v.Decrypt(token)
package vault

import (
	"crypto/sha256"
	"fmt"

	"github.com/fernet/fernet-go"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
	"golang.org/x/crypto/pbkdf2"
)

// MinIterations is the lowest PBKDF2 iteration count New accepts.
const MinIterations = 100_000

// Vault encrypts and decrypts credentials with one derived key.
// It is safe for concurrent use.
type Vault struct {
	key         fernet.Key
	iterations  int
	allowLegacy bool
	log         *logger.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithIterations overrides the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(v *Vault) { v.iterations = n }
}

// WithLegacyPlaintext enables Migrate's re-encryption of plaintext values.
func WithLegacyPlaintext(allow bool) Option {
	return func(v *Vault) { v.allowLegacy = allow }
}

// WithLogger sets the logger used for migration and failure events.
func WithLogger(l *logger.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// New derives the key from masterSecret and salt. Both are required; a
// shared or empty salt would make every installation's key identical.
func New(masterSecret, salt string, opts ...Option) (*Vault, error) {
	v := &Vault{
		iterations: MinIterations,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}

	if masterSecret == "" {
		return nil, errs.New(errs.ErrKindConfig, "vault master secret is empty")
	}
	if salt == "" {
		return nil, errs.New(errs.ErrKindConfig, "vault salt is empty")
	}
	if v.iterations < MinIterations {
		return nil, errs.New(errs.ErrKindConfig,
			fmt.Sprintf("vault iterations must be at least %d", MinIterations))
	}

	v.key = DeriveKey([]byte(masterSecret), []byte(salt), v.iterations)
	return v, nil
}

// DeriveKey runs PBKDF2-HMAC-SHA256 and returns a 32-byte Fernet key: the
// first half signs, the second encrypts.
func DeriveKey(masterSecret, salt []byte, iterations int) fernet.Key {
	var k fernet.Key
	copy(k[:], pbkdf2.Key(masterSecret, salt, iterations, len(k), sha256.New))
	return k
}

// Encrypt returns a token for plaintext. The empty string maps to the empty
// string, meaning "no credential".
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	token, err := seal(&v.key, []byte(plaintext))
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnknown, "failed to encrypt credential", err)
	}
	return token, nil
}

// Decrypt verifies and decrypts token. Any failure is a decryption error;
// the token is never treated as plaintext.
func (v *Vault) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	plain, err := unseal(&v.key, token)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindDecryption, "credential token rejected", err)
	}
	return string(plain), nil
}

// Migrate upgrades a stored value to a token. A value that already decrypts
// is returned as is. Anything else is treated as legacy plaintext only when
// the vault was built WithLegacyPlaintext(true); each such migration is
// logged. The second return value reports whether a migration happened.
func (v *Vault) Migrate(stored string) (string, bool, error) {
	if stored == "" {
		return "", false, nil
	}
	if _, err := v.Decrypt(stored); err == nil {
		return stored, false, nil
	} else if !v.allowLegacy || looksLikeToken(stored) {
		// A token under a different key must never be re-encrypted as if it
		// were the password itself.
		return "", false, err
	}

	token, err := v.Encrypt(stored)
	if err != nil {
		return "", false, err
	}
	v.log.Warn("legacy plaintext credential re-encrypted")
	return token, true, nil
}
