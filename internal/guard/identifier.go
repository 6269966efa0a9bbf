package guard

import "regexp"

// MaxIdentifierLength bounds table and column names.
const MaxIdentifierLength = 128

var (
	tableNameRe  = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	columnNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// ValidTableName reports whether name is safe to interpolate as a table
// reference. Dots are allowed for schema-qualified names ("sales.orders").
func ValidTableName(name string) bool {
	return name != "" && len(name) <= MaxIdentifierLength && tableNameRe.MatchString(name)
}

// ValidColumnName reports whether name is a bare identifier of letters,
// digits and underscores.
func ValidColumnName(name string) bool {
	return name != "" && len(name) <= MaxIdentifierLength && columnNameRe.MatchString(name)
}
