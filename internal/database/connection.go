package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/vizly/internal/errs"
)

// Cipher is the part of the credential vault a Connection needs.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Connection is a named external-database target as stored by the
// persistence layer. The password only ever lives here encrypted.
type Connection struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Dialect           Dialect   `json:"dialect"`
	Host              string    `json:"host,omitempty"`
	Port              int       `json:"port,omitempty"`
	Database          string    `json:"database"`
	Username          string    `json:"username,omitempty"`
	EncryptedPassword string    `json:"-"`
	UseTLS            bool      `json:"use_tls"`
	OwnerID           string    `json:"owner_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PlaintextPassword decrypts the stored password. An empty blob yields an
// empty password. A blob that fails to decrypt is an error here, at open
// time, never when the record is read.
func (c *Connection) PlaintextPassword(v Cipher) (string, error) {
	return v.Decrypt(c.EncryptedPassword)
}

// SetPlaintextPassword encrypts plain into the record and bumps UpdatedAt,
// so any engine built from the previous credential goes stale.
func (c *Connection) SetPlaintextPassword(v Cipher, plain string) error {
	token, err := v.Encrypt(plain)
	if err != nil {
		return err
	}
	c.EncryptedPassword = token
	c.Touch(time.Now())
	return nil
}

// Touch moves UpdatedAt forward to now, or by one nanosecond when now does
// not advance it. Every edit that affects how the target is reached must
// call it.
func (c *Connection) Touch(now time.Time) {
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Nanosecond)
	}
	c.UpdatedAt = now
}

// EffectivePort returns Port, or the dialect default when unset.
func (c *Connection) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	caps, err := c.Dialect.Capabilities()
	if err != nil {
		return 0
	}
	return caps.DefaultPort
}

// Validate checks the fields needed to build a connection string.
func (c *Connection) Validate() error {
	if c.ID == "" {
		return errs.New(errs.ErrKindConfig, "connection id is required")
	}
	caps, err := c.Dialect.Capabilities()
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Database) == "" {
		return errs.New(errs.ErrKindConfig, "database is required")
	}
	if caps.FileBased {
		return nil
	}
	if strings.TrimSpace(c.Host) == "" {
		return errs.New(errs.ErrKindConfig, "host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errs.New(errs.ErrKindConfig, fmt.Sprintf("port %d out of range", c.Port))
	}
	return nil
}

// Clone returns a copy safe to mutate independently.
func (c *Connection) Clone() *Connection {
	cp := *c
	return &cp
}
