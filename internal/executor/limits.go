package executor

import "time"

// Limits bound what a single request may ask for.
type Limits struct {
	DefaultTimeout time.Duration `koanf:"default_timeout"`
	MaxTimeout     time.Duration `koanf:"max_timeout"`
	DefaultMaxRows int           `koanf:"default_max_rows"`
	ExportMaxRows  int           `koanf:"export_max_rows"`
	ProbeTimeout   time.Duration `koanf:"probe_timeout"`

	// Grace is added to the caller-side deadline on dialects that enforce
	// the statement timeout server side, so the server's own timeout error
	// normally wins the race.
	Grace time.Duration `koanf:"grace"`

	// RatePerSecond caps executions per connection. Zero disables it.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// DefaultLimits returns the stock bounds.
func DefaultLimits() Limits {
	return Limits{
		DefaultTimeout: 30 * time.Second,
		MaxTimeout:     300 * time.Second,
		DefaultMaxRows: 10_000,
		ExportMaxRows:  50_000,
		ProbeTimeout:   5 * time.Second,
		Grace:          2 * time.Second,
	}
}

// timeout clamps a requested timeout into (0, MaxTimeout].
func (l Limits) timeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return l.DefaultTimeout
	}
	if l.MaxTimeout > 0 && requested > l.MaxTimeout {
		return l.MaxTimeout
	}
	return requested
}

// maxRows clamps a requested row cap. Exports default to and may go up to
// ExportMaxRows; everything else is bound by DefaultMaxRows.
func (l Limits) maxRows(requested int, export bool) int {
	bound := l.DefaultMaxRows
	if export && l.ExportMaxRows > bound {
		bound = l.ExportMaxRows
	}
	if requested <= 0 || requested > bound {
		return bound
	}
	return requested
}
