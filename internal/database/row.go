package database

import "github.com/google/uuid"

// ReadRows reads at most limit rows from cur into maps keyed by column name.
// It stops as soon as limit rows are held and does not pull the remainder
// across; capped reports that the limit was reached. A limit <= 0 reads
// everything.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ReadRows does not close cur.
func ReadRows(cur Cursor, limit int) (rows []map[string]any, capped bool, err error) {
	columns := cur.Columns()
	rows = make([]map[string]any, 0)

	for limit <= 0 || len(rows) < limit {
		if !cur.Next() {
			break
		}
		vals, err := cur.Values()
		if err != nil {
			return nil, false, errQuery("failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(vals) {
				row[col.Name] = vals[i]
			}
		}
		rows = append(rows, row)
	}

	if err := cur.Err(); err != nil {
		return nil, false, err
	}

	return rows, limit > 0 && len(rows) == limit, nil
}

// scanValues reads the current row through Scan using *any destinations so
// the driver can write any type.
func scanValues(scan func(dest ...any) error, n int) ([]any, error) {
	dest := make([]any, n)
	ptrs := make([]any, n)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range dest {
		dest[i] = NormalizeValue(v)
	}
	return dest, nil
}

// NormalizeValue converts driver values that do not serialise sensibly:
// byte slices become strings and 16-byte arrays (Postgres uuid) become their
// canonical text form.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return v
}
