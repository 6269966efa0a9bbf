// Package catalog keeps the connection records vizly serves. It is the
// persistence seam: every mutation bumps the record's updated_at and tells
// the registry to drop engines built from the old version.
package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
)

// Invalidator drops cached engines for a connection.
// *registry.Registry satisfies it.
type Invalidator interface {
	Invalidate(id string)
}

// Migrator upgrades stored credentials. *vault.Vault satisfies it.
type Migrator interface {
	Migrate(stored string) (token string, migrated bool, err error)
}

// Catalog is an in-memory connection store. It is safe for concurrent use.
// Records go in and come out as copies.
type Catalog struct {
	cipher database.Cipher
	inv    Invalidator
	log    *logger.Logger
	now    func() time.Time

	mu    sync.RWMutex
	conns map[string]*database.Connection
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// New returns an empty catalog. inv may be nil.
func New(cipher database.Cipher, inv Invalidator, opts ...Option) *Catalog {
	c := &Catalog{
		cipher: cipher,
		inv:    inv,
		log:    logger.Nop(),
		now:    time.Now,
		conns:  make(map[string]*database.Connection),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Seed loads records at startup without touching them. If the cipher can
// migrate credentials, legacy plaintext passwords are upgraded here; a
// password that can be neither decrypted nor migrated is kept as is and
// fails when the connection is first used.
func (c *Catalog) Seed(conns ...*database.Connection) error {
	m, canMigrate := c.cipher.(Migrator)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range conns {
		if err := conn.Validate(); err != nil {
			return err
		}
		cp := conn.Clone()
		if canMigrate {
			token, migrated, err := m.Migrate(cp.EncryptedPassword)
			switch {
			case err != nil:
				c.log.With().Str(logger.FieldConnectionID, cp.ID).Err(err).Logger().
					Warn("stored credential is not a valid token")
			case migrated:
				cp.EncryptedPassword = token
				cp.Touch(c.now())
			}
		}
		c.conns[cp.ID] = cp
	}
	return nil
}

// Get returns a copy of the record with id.
func (c *Catalog) Get(id string) (*database.Connection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.conns[id]
	if !ok {
		return nil, notFound(id)
	}
	return conn.Clone(), nil
}

// List returns copies of all records ordered by id.
func (c *Catalog) List() []*database.Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*database.Connection, 0, len(c.conns))
	for _, conn := range c.conns {
		out = append(out, conn.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Put creates or replaces a record. CreatedAt survives a replace and
// UpdatedAt always moves forward.
func (c *Catalog) Put(conn *database.Connection) (*database.Connection, error) {
	if conn == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "connection is required")
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	cp := conn.Clone()
	now := c.now()

	c.mu.Lock()
	if old, ok := c.conns[cp.ID]; ok {
		cp.CreatedAt = old.CreatedAt
		cp.UpdatedAt = old.UpdatedAt
	} else {
		cp.CreatedAt = now
		cp.UpdatedAt = time.Time{}
	}
	cp.Touch(now)
	c.conns[cp.ID] = cp
	c.mu.Unlock()

	c.invalidate(cp.ID)
	return cp.Clone(), nil
}

// Delete removes a record and its engines.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	_, ok := c.conns[id]
	delete(c.conns, id)
	c.mu.Unlock()

	if !ok {
		return notFound(id)
	}
	c.invalidate(id)
	return nil
}

// RotatePassword encrypts plaintext into the record with id.
func (c *Catalog) RotatePassword(id, plaintext string) error {
	c.mu.Lock()
	conn, ok := c.conns[id]
	if !ok {
		c.mu.Unlock()
		return notFound(id)
	}
	cp := conn.Clone()
	if err := cp.SetPlaintextPassword(c.cipher, plaintext); err != nil {
		c.mu.Unlock()
		return err
	}
	c.conns[id] = cp
	c.mu.Unlock()

	c.log.With().Str(logger.FieldConnectionID, id).Logger().Info("connection password rotated")
	c.invalidate(id)
	return nil
}

func (c *Catalog) invalidate(id string) {
	if c.inv != nil {
		c.inv.Invalidate(id)
	}
}

func notFound(id string) error {
	return errs.New(errs.ErrKindNotFound, "connection "+id+" not found")
}
