package schema

// Builder helps assemble a TableSchema by hand. Column modifiers
// (Identity, Nullable, Default, ...) apply to the most recently added
// column and are no-ops when there is none.
type Builder struct {
	table TableSchema
}

// NewBuilder creates a builder for schemaName.name.
func NewBuilder(schemaName, name string) *Builder {
	return &Builder{
		table: TableSchema{Schema: schemaName, Name: name},
	}
}

// AddColumn adds a NOT NULL column with the given type syntax.
func (b *Builder) AddColumn(name, typ string) *Builder {
	b.table.Columns = append(b.table.Columns, ColumnSchema{
		Name: name,
		Type: typ,
	})
	return b
}

// AddComputed adds a computed column.
func (b *Builder) AddComputed(name, expression string) *Builder {
	b.table.Columns = append(b.table.Columns, ColumnSchema{
		Name:     name,
		Nullable: true,
		Computed: &ComputedSchema{Expression: expression},
	})
	return b
}

func (b *Builder) last() *ColumnSchema {
	if len(b.table.Columns) == 0 {
		return nil
	}
	return &b.table.Columns[len(b.table.Columns)-1]
}

// Nullable marks the last column NULL.
func (b *Builder) Nullable() *Builder {
	if c := b.last(); c != nil {
		c.Nullable = true
	}
	return b
}

// Identity makes the last column an identity column.
func (b *Builder) Identity(start, increment int64) *Builder {
	if c := b.last(); c != nil {
		c.Identity = &IdentitySchema{Start: start, Increment: increment}
	}
	return b
}

// Default sets the default expression of the last column.
func (b *Builder) Default(expression string) *Builder {
	if c := b.last(); c != nil {
		c.DefaultValue = expression
	}
	return b
}

// ColumnComment sets the description of the last column.
func (b *Builder) ColumnComment(text string) *Builder {
	if c := b.last(); c != nil {
		c.Comment = text
	}
	return b
}

// PrimaryKey sets the table's primary key, replacing any previous one.
func (b *Builder) PrimaryKey(name string, columns ...string) *Builder {
	b.table.PrimaryKey = &PrimaryKeySchema{Name: name, Columns: columns}
	return b
}

// Index adds an ascending index over columns.
func (b *Builder) Index(name string, unique bool, columns ...string) *Builder {
	idx := IndexSchema{Name: name, Unique: unique}
	for _, c := range columns {
		idx.Columns = append(idx.Columns, IndexColumn{Name: c})
	}
	b.table.Indexes = append(b.table.Indexes, idx)
	return b
}

// ForeignKey adds a foreign key to refTable in the table's own schema.
func (b *Builder) ForeignKey(name string, columns []string, refTable string, refColumns []string) *Builder {
	b.table.ForeignKeys = append(b.table.ForeignKeys, ForeignKeySchema{
		Name:             name,
		Columns:          columns,
		ReferenceSchema:  b.table.Schema,
		ReferenceTable:   refTable,
		ReferenceColumns: refColumns,
	})
	return b
}

// Check adds a check constraint.
func (b *Builder) Check(name, expression string) *Builder {
	b.table.CheckConstraints = append(b.table.CheckConstraints, CheckConstraintSchema{
		Name:       name,
		Expression: expression,
	})
	return b
}

// Comment sets the table description.
func (b *Builder) Comment(text string) *Builder {
	b.table.Comment = text
	return b
}

// Build returns a copy of the table built so far.
func (b *Builder) Build() TableSchema {
	t := b.table
	t.Columns = append([]ColumnSchema(nil), b.table.Columns...)
	t.Indexes = append([]IndexSchema(nil), b.table.Indexes...)
	t.ForeignKeys = append([]ForeignKeySchema(nil), b.table.ForeignKeys...)
	t.CheckConstraints = append([]CheckConstraintSchema(nil), b.table.CheckConstraints...)
	return t
}

// Reset clears everything but the table name.
func (b *Builder) Reset() *Builder {
	b.table = TableSchema{Schema: b.table.Schema, Name: b.table.Name}
	return b
}

// ColumnCount returns the number of columns added.
func (b *Builder) ColumnCount() int {
	return len(b.table.Columns)
}

// HasPrimaryKey reports whether a primary key was set.
func (b *Builder) HasPrimaryKey() bool {
	return b.table.PrimaryKey != nil
}
