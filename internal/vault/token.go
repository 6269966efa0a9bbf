package vault

import (
	"encoding/base64"
	"errors"

	"github.com/fernet/fernet-go"
)

// Fernet token framing, used only to recognise a token without its key:
// version(1) | timestamp(8) | iv(16) | ciphertext(>=16) | hmac-sha256(32).
const (
	tokenVersion byte = 0x80
	minTokenSize      = 1 + 8 + 16 + 16 + 32
)

// ErrInvalidToken is the cause of every decryption failure. Malformed,
// tampered and wrong-key tokens are indistinguishable on purpose.
var ErrInvalidToken = errors.New("invalid credential token")

func seal(k *fernet.Key, plaintext []byte) (string, error) {
	tok, err := fernet.EncryptAndSign(plaintext, k)
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// unseal verifies and decrypts token. Stored credentials never expire, so
// the token age is not checked.
func unseal(k *fernet.Key, token string) ([]byte, error) {
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{k})
	if plain == nil {
		return nil, ErrInvalidToken
	}
	return plain, nil
}

// looksLikeToken reports whether s has the shape of a token, without
// verifying it. Used to tell legacy plaintext from a token under a wrong key.
func looksLikeToken(s string) bool {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return len(raw) >= minTokenSize && raw[0] == tokenVersion
}
