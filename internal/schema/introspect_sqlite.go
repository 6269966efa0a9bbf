package schema

import (
	"context"
	"sort"

	"github.com/koustreak/vizly/internal/guard"
)

// SQLite exposes per-table metadata only through pragmas, which take no
// bound parameters. Every name read back from sqlite_master is checked
// against the strict identifier pattern before it is spliced into a pragma;
// names that fail are skipped.

const sqliteTablesQuery = `
	SELECT name
	FROM sqlite_master
	WHERE type = 'table'
	  AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

func inspectSQLite(ctx context.Context, c *catalog) ([]Table, error) {
	rows, err := c.query(ctx, sqliteTablesQuery)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	for _, r := range rows {
		name := str(r[0])
		if !guard.ValidColumnName(name) {
			c.log.With().Str("table", name).Logger().Warn("skipping table with unsafe name")
			continue
		}
		t := b.add(name)
		if err := sqliteColumns(ctx, c, t); err != nil {
			return nil, err
		}
		if err := sqliteForeignKeys(ctx, c, t); err != nil {
			return nil, err
		}
		if err := sqliteIndexes(ctx, c, t); err != nil {
			return nil, err
		}
	}
	return b.result(), nil
}

// pragma renders a table-valued pragma call for an already validated name.
func pragma(fn, name string) string {
	return "PRAGMA " + fn + `("` + name + `")`
}

// sqliteColumns reads table_info: cid, name, type, notnull, dflt_value, pk.
// pk is the column's 1-based position in the primary key, 0 if absent.
func sqliteColumns(ctx context.Context, c *catalog, t *Table) error {
	rows, err := c.query(ctx, pragma("table_info", t.Name))
	if err != nil {
		return err
	}

	type keyPart struct {
		pos  int64
		name string
	}
	var pk []keyPart
	for _, r := range rows {
		col := Column{
			Name:     str(r[1]),
			Type:     str(r[2]),
			Nullable: !truthy(r[3]),
			Default:  optStr(r[4]),
		}
		if pos := integer(r[5]); pos > 0 {
			pk = append(pk, keyPart{pos: pos, name: col.Name})
		}
		t.Columns = append(t.Columns, col)
	}

	sort.Slice(pk, func(i, j int) bool { return pk[i].pos < pk[j].pos })
	for _, p := range pk {
		t.markPrimaryKey(p.name)
	}
	return nil
}

// sqliteForeignKeys reads foreign_key_list: id, seq, table, from, to, ...
// Rows sharing an id form one key; SQLite does not name them.
func sqliteForeignKeys(ctx context.Context, c *catalog, t *Table) error {
	rows, err := c.query(ctx, pragma("foreign_key_list", t.Name))
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if a, b := integer(rows[i][0]), integer(rows[j][0]); a != b {
			return a < b
		}
		return integer(rows[i][1]) < integer(rows[j][1])
	})
	for _, r := range rows {
		fk := t.foreignKey("fk_"+t.Name+"_"+str(r[0]), str(r[2]))
		fk.Columns = append(fk.Columns, str(r[3]))
		fk.RefColumns = append(fk.RefColumns, str(r[4]))
	}
	return nil
}

// sqliteIndexes reads index_list (seq, name, unique, origin, partial) and
// index_info (seqno, cid, name) for each index.
func sqliteIndexes(ctx context.Context, c *catalog, t *Table) error {
	list, err := c.query(ctx, pragma("index_list", t.Name))
	if err != nil {
		return err
	}
	for _, r := range list {
		name := str(r[1])
		if !guard.ValidColumnName(name) {
			c.log.With().Str("table", t.Name).Str("index", name).Logger().Warn("skipping index with unsafe name")
			continue
		}
		info, err := c.query(ctx, pragma("index_info", name))
		if err != nil {
			return err
		}
		idx := t.index(name, truthy(r[2]))
		sort.Slice(info, func(i, j int) bool { return integer(info[i][0]) < integer(info[j][0]) })
		for _, col := range info {
			idx.Columns = append(idx.Columns, str(col[2]))
		}
	}
	sort.Slice(t.Indexes, func(i, j int) bool { return t.Indexes[i].Name < t.Indexes[j].Name })
	return nil
}
