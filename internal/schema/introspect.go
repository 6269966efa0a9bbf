package schema

import "context"

// Postgres reads information_schema for the current schema (the first
// entry of search_path), and pg_catalog for indexes, which
// information_schema does not describe.

const pgColumnsQuery = `
	SELECT
		t.table_name,
		c.column_name,
		c.data_type,
		c.is_nullable,
		c.column_default
	FROM information_schema.tables t
	LEFT JOIN information_schema.columns c
		ON c.table_schema = t.table_schema
		AND c.table_name = t.table_name
	WHERE t.table_schema = current_schema()
	  AND t.table_type = 'BASE TABLE'
	ORDER BY t.table_name, c.ordinal_position`

const pgKeysQuery = `
	SELECT
		tc.table_name,
		tc.constraint_name,
		tc.constraint_type,
		kcu.column_name,
		COALESCE(ref.table_name, '')  AS ref_table,
		COALESCE(ref.column_name, '') AS ref_column
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_schema = tc.constraint_schema
		AND kcu.constraint_name = tc.constraint_name
		AND kcu.table_name = tc.table_name
	LEFT JOIN information_schema.referential_constraints rc
		ON rc.constraint_schema = tc.constraint_schema
		AND rc.constraint_name = tc.constraint_name
	LEFT JOIN information_schema.key_column_usage ref
		ON ref.constraint_schema = rc.unique_constraint_schema
		AND ref.constraint_name = rc.unique_constraint_name
		AND ref.ordinal_position = kcu.position_in_unique_constraint
	WHERE tc.table_schema = current_schema()
	  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
	ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`

const pgIndexesQuery = `
	SELECT
		t.relname   AS table_name,
		i.relname   AS index_name,
		ix.indisunique,
		a.attname   AS column_name
	FROM pg_catalog.pg_index ix
	JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
	JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
	JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
	JOIN pg_catalog.pg_attribute a
		ON a.attrelid = t.oid
		AND a.attnum = k.attnum
	WHERE n.nspname = current_schema()
	ORDER BY t.relname, i.relname, k.ord`

func inspectPostgres(ctx context.Context, c *catalog) ([]Table, error) {
	b := newBuilder()
	if err := infoSchemaColumns(ctx, c, b, pgColumnsQuery); err != nil {
		return nil, err
	}

	rows, err := c.query(ctx, pgKeysQuery)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		t, ok := b.get(str(r[0]))
		if !ok {
			continue
		}
		column := str(r[3])
		switch str(r[2]) {
		case "PRIMARY KEY":
			t.markPrimaryKey(column)
		case "FOREIGN KEY":
			fk := t.foreignKey(str(r[1]), str(r[4]))
			fk.Columns = append(fk.Columns, column)
			fk.RefColumns = append(fk.RefColumns, str(r[5]))
		}
	}

	if err := indexRows(ctx, c, b, pgIndexesQuery, false); err != nil {
		return nil, err
	}
	return b.result(), nil
}

// infoSchemaColumns reads (table, column, type, is_nullable, default) rows
// into b. A table without columns still appears, with a NULL column.
func infoSchemaColumns(ctx context.Context, c *catalog, b *builder, q string) error {
	rows, err := c.query(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range rows {
		name := str(r[0])
		if name == "" {
			continue
		}
		t := b.add(name)
		if r[1] == nil {
			continue
		}
		t.Columns = append(t.Columns, Column{
			Name:     str(r[1]),
			Type:     str(r[2]),
			Nullable: truthy(r[3]),
			Default:  optStr(r[4]),
		})
	}
	return nil
}

// indexRows reads (table, index, flag, column) rows into b. The flag is
// "unique" for Postgres and "non_unique" for MySQL, so inverted says which.
func indexRows(ctx context.Context, c *catalog, b *builder, q string, inverted bool) error {
	rows, err := c.query(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range rows {
		t, ok := b.get(str(r[0]))
		if !ok {
			continue
		}
		unique := truthy(r[2])
		if inverted {
			unique = !unique
		}
		idx := t.index(str(r[1]), unique)
		idx.Columns = append(idx.Columns, str(r[3]))
	}
	return nil
}
