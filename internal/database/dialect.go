package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/vizly/internal/errs"
)

// Dialect identifies a supported external database kind.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// Capabilities describes what the core may assume about a dialect.
type Capabilities struct {
	// Pooled is false for file-backed engines; sessions are opened per use.
	Pooled bool

	// NativeTimeout means the server enforces a per-statement timeout set on
	// the session. Without it the caller's watchdog is the only bound.
	NativeTimeout bool

	// DefaultPort applies when a connection leaves its port unset.
	DefaultPort int

	// FileBased engines address a path instead of host/port.
	FileBased bool

	// IdentQuote wraps identifiers in generated metadata statements.
	IdentQuote string
}

var capabilities = map[Dialect]Capabilities{
	DialectPostgres: {Pooled: true, NativeTimeout: true, DefaultPort: 5432, IdentQuote: `"`},
	DialectMySQL:    {Pooled: true, NativeTimeout: true, DefaultPort: 3306, IdentQuote: "`"},
	DialectSQLite:   {Pooled: false, NativeTimeout: false, FileBased: true, IdentQuote: `"`},
}

// Dialects lists the supported dialects in a stable order.
func Dialects() []Dialect {
	return []Dialect{DialectPostgres, DialectMySQL, DialectSQLite}
}

// ParseDialect accepts the canonical names and common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", unsupportedDialect(s)
}

// Capabilities returns the capability row for d.
func (d Dialect) Capabilities() (Capabilities, error) {
	c, ok := capabilities[d]
	if !ok {
		return Capabilities{}, unsupportedDialect(string(d))
	}
	return c, nil
}

// Valid reports whether d is one of the supported dialects.
func (d Dialect) Valid() bool {
	_, ok := capabilities[d]
	return ok
}

func (d Dialect) String() string { return string(d) }

// QuoteIdent quotes name for use as an identifier. Embedded quote characters
// are doubled, so the result is always a single identifier token.
func (d Dialect) QuoteIdent(name string) string {
	q := capabilities[d].IdentQuote
	if q == "" {
		q = `"`
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func unsupportedDialect(s string) *errs.Error {
	return errs.New(errs.ErrKindConfig, fmt.Sprintf("unsupported dialect %q", s))
}
