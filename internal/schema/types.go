package schema

// Column describes a single column in a table.
type Column struct {
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"` // as the database reports it: text, int4, varchar, INTEGER, ...
	Nullable   bool    `json:"nullable" yaml:"nullable"`
	Default    *string `json:"default" yaml:"default"` // nil if no default
	PrimaryKey bool    `json:"primary_key" yaml:"primary_key"`
}

// ForeignKey describes a reference from one table to another. Columns and
// RefColumns pair up by position.
type ForeignKey struct {
	Name       string   `json:"name" yaml:"name"`
	Columns    []string `json:"columns" yaml:"columns"`
	RefTable   string   `json:"referenced_table" yaml:"referenced_table"`
	RefColumns []string `json:"referenced_columns" yaml:"referenced_columns"`
}

// Index describes an index and its key columns in order.
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique" yaml:"unique"`
}

// Table describes a table, its columns and its keys.
type Table struct {
	Name        string       `json:"name" yaml:"name"`
	Columns     []Column     `json:"columns" yaml:"columns"`
	PrimaryKey  []string     `json:"primary_key" yaml:"primary_key"`
	ForeignKeys []ForeignKey `json:"foreign_keys" yaml:"foreign_keys"`
	Indexes     []Index      `json:"indexes" yaml:"indexes"`
}

// Snapshot is the introspected schema of one connection. It is computed
// fresh on every request and carries no row counts.
type Snapshot struct {
	ConnectionID string  `json:"connection_id" yaml:"connection_id"`
	Dialect      string  `json:"dialect" yaml:"dialect"`
	Tables       []Table `json:"tables" yaml:"tables"`
}

// builder assembles tables from catalog rows that arrive ordered by table.
type builder struct {
	tables []*Table
	byName map[string]*Table
}

func newBuilder() *builder {
	return &builder{byName: make(map[string]*Table)}
}

// add registers name, keeping first-seen order.
func (b *builder) add(name string) *Table {
	if t, ok := b.byName[name]; ok {
		return t
	}
	t := &Table{
		Name:        name,
		Columns:     []Column{},
		PrimaryKey:  []string{},
		ForeignKeys: []ForeignKey{},
		Indexes:     []Index{},
	}
	b.tables = append(b.tables, t)
	b.byName[name] = t
	return t
}

// get returns a known table. Rows for tables outside the listing, such as
// views, are dropped.
func (b *builder) get(name string) (*Table, bool) {
	t, ok := b.byName[name]
	return t, ok
}

// foreignKey returns the named key on t, creating it on first use.
func (t *Table) foreignKey(name, refTable string) *ForeignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].Name == name {
			return &t.ForeignKeys[i]
		}
	}
	t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
		Name:       name,
		Columns:    []string{},
		RefTable:   refTable,
		RefColumns: []string{},
	})
	return &t.ForeignKeys[len(t.ForeignKeys)-1]
}

// index returns the named index on t, creating it on first use.
func (t *Table) index(name string, unique bool) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	t.Indexes = append(t.Indexes, Index{Name: name, Columns: []string{}, Unique: unique})
	return &t.Indexes[len(t.Indexes)-1]
}

// markPrimaryKey flags col as part of the primary key.
func (t *Table) markPrimaryKey(col string) {
	t.PrimaryKey = append(t.PrimaryKey, col)
	for i := range t.Columns {
		if t.Columns[i].Name == col {
			t.Columns[i].PrimaryKey = true
		}
	}
}

func (b *builder) result() []Table {
	out := make([]Table, len(b.tables))
	for i, t := range b.tables {
		out[i] = *t
	}
	return out
}
