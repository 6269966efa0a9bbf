package database

import "time"

// PoolConfig bounds every pooled engine the registry builds.
type PoolConfig struct {
	// MaxSize is the number of sessions kept open between uses.
	MaxSize int `koanf:"max_size"`

	// MaxOverflow is how many extra sessions may be opened under load.
	// They are closed again once released beyond MaxSize.
	MaxOverflow int `koanf:"max_overflow"`

	// Recycle discards sessions older than this instead of reusing them,
	// staying ahead of server-side idle timeouts.
	Recycle time.Duration `koanf:"recycle"`

	// MaxIdleTime closes sessions that sat unused this long.
	MaxIdleTime time.Duration `koanf:"max_idle_time"`

	// ConnectTimeout limits establishing a new session.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// PrePing checks a session is alive before handing it out.
	PrePing bool `koanf:"pre_ping"`
}

// DefaultPoolConfig returns the pool bounds used when nothing is configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:        5,
		MaxOverflow:    10,
		Recycle:        time.Hour,
		MaxIdleTime:    10 * time.Minute,
		ConnectTimeout: 10 * time.Second,
		PrePing:        true,
	}
}

// MaxOpen is the hard ceiling on concurrently open sessions.
func (p PoolConfig) MaxOpen() int {
	return p.MaxSize + p.MaxOverflow
}
