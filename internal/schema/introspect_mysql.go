package schema

import "context"

// MySQL has one schema per database, so everything is scoped to DATABASE().
// KEY_COLUMN_USAGE carries both the PRIMARY constraint and foreign keys,
// the latter with their referenced columns inline.

const mysqlColumnsQuery = `
	SELECT
		t.TABLE_NAME,
		c.COLUMN_NAME,
		c.DATA_TYPE,
		c.IS_NULLABLE,
		c.COLUMN_DEFAULT
	FROM information_schema.TABLES t
	LEFT JOIN information_schema.COLUMNS c
		ON c.TABLE_SCHEMA = t.TABLE_SCHEMA
		AND c.TABLE_NAME = t.TABLE_NAME
	WHERE t.TABLE_SCHEMA = DATABASE()
	  AND t.TABLE_TYPE = 'BASE TABLE'
	ORDER BY t.TABLE_NAME, c.ORDINAL_POSITION`

const mysqlPrimaryKeyQuery = `
	SELECT TABLE_NAME, COLUMN_NAME
	FROM information_schema.KEY_COLUMN_USAGE
	WHERE TABLE_SCHEMA = DATABASE()
	  AND CONSTRAINT_NAME = 'PRIMARY'
	ORDER BY TABLE_NAME, ORDINAL_POSITION`

const mysqlForeignKeysQuery = `
	SELECT
		TABLE_NAME,
		CONSTRAINT_NAME,
		COLUMN_NAME,
		REFERENCED_TABLE_NAME,
		REFERENCED_COLUMN_NAME
	FROM information_schema.KEY_COLUMN_USAGE
	WHERE TABLE_SCHEMA = DATABASE()
	  AND REFERENCED_TABLE_NAME IS NOT NULL
	ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`

const mysqlIndexesQuery = `
	SELECT TABLE_NAME, INDEX_NAME, NON_UNIQUE, COLUMN_NAME
	FROM information_schema.STATISTICS
	WHERE TABLE_SCHEMA = DATABASE()
	ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`

func inspectMySQL(ctx context.Context, c *catalog) ([]Table, error) {
	b := newBuilder()
	if err := infoSchemaColumns(ctx, c, b, mysqlColumnsQuery); err != nil {
		return nil, err
	}

	pks, err := c.query(ctx, mysqlPrimaryKeyQuery)
	if err != nil {
		return nil, err
	}
	for _, r := range pks {
		if t, ok := b.get(str(r[0])); ok {
			t.markPrimaryKey(str(r[1]))
		}
	}

	fks, err := c.query(ctx, mysqlForeignKeysQuery)
	if err != nil {
		return nil, err
	}
	for _, r := range fks {
		t, ok := b.get(str(r[0]))
		if !ok {
			continue
		}
		fk := t.foreignKey(str(r[1]), str(r[3]))
		fk.Columns = append(fk.Columns, str(r[2]))
		fk.RefColumns = append(fk.RefColumns, str(r[4]))
	}

	if err := indexRows(ctx, c, b, mysqlIndexesQuery, true); err != nil {
		return nil, err
	}
	return b.result(), nil
}
