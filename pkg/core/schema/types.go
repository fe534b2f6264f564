package schema

import (
	"fmt"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// DatabaseSchema is a read-only snapshot of one database's structure.
// Relationships (foreign keys, index columns) are by-name references, never
// pointers, so a snapshot can be serialized and diffed as plain data.
type DatabaseSchema struct {
	Name       string            `yaml:"name"`
	Collation  string            `yaml:"collation,omitempty"`
	Schemas    []SchemaName      `yaml:"schemas,omitempty"`
	Tables     []TableSchema     `yaml:"tables,omitempty"`
	Views      []ViewSchema      `yaml:"views,omitempty"`
	Procedures []ProcedureSchema `yaml:"procedures,omitempty"`
	Functions  []FunctionSchema  `yaml:"functions,omitempty"`
	Sequences  []SequenceSchema  `yaml:"sequences,omitempty"`
}

// SchemaName is a namespace (dbo, sales, ...).
type SchemaName struct {
	Name    string `yaml:"name"`
	Comment string `yaml:"comment,omitempty"`
}

// TableSchema describes a table. Columns keep catalog ordinal order.
type TableSchema struct {
	Schema           string                  `yaml:"schema"`
	Name             string                  `yaml:"name"`
	Columns          []ColumnSchema          `yaml:"columns"`
	PrimaryKey       *PrimaryKeySchema       `yaml:"primary_key,omitempty"`
	Indexes          []IndexSchema           `yaml:"indexes,omitempty"`
	ForeignKeys      []ForeignKeySchema      `yaml:"foreign_keys,omitempty"`
	CheckConstraints []CheckConstraintSchema `yaml:"check_constraints,omitempty"`
	Comment          string                  `yaml:"comment,omitempty"`
}

// ColumnSchema describes a column. Type holds the dialect type syntax
// (e.g. NVARCHAR(120)); use DbType to obtain the logical type.
type ColumnSchema struct {
	Name         string          `yaml:"name"`
	Type         string          `yaml:"type"`
	Nullable     bool            `yaml:"nullable"`
	Identity     *IdentitySchema `yaml:"identity,omitempty"`
	Computed     *ComputedSchema `yaml:"computed,omitempty"`
	DefaultValue string          `yaml:"default,omitempty"`
	Comment      string          `yaml:"comment,omitempty"`
}

type IdentitySchema struct {
	Start     int64 `yaml:"start"`
	Increment int64 `yaml:"increment"`
}

type ComputedSchema struct {
	Expression string `yaml:"expression"`
}

type PrimaryKeySchema struct {
	Name         string   `yaml:"name"`
	Columns      []string `yaml:"columns"`
	NonClustered bool     `yaml:"nonclustered,omitempty"`
	Comment      string   `yaml:"comment,omitempty"`
}

type IndexColumn struct {
	Name string `yaml:"name"`
	Desc bool   `yaml:"desc,omitempty"`
}

type IndexSchema struct {
	Name      string        `yaml:"name"`
	Columns   []IndexColumn `yaml:"columns"`
	Unique    bool          `yaml:"unique,omitempty"`
	Clustered bool          `yaml:"clustered,omitempty"`
	Comment   string        `yaml:"comment,omitempty"`
}

// ForeignKeySchema pairs Columns with ReferenceColumns by position.
type ForeignKeySchema struct {
	Name             string   `yaml:"name"`
	Columns          []string `yaml:"columns"`
	ReferenceSchema  string   `yaml:"reference_schema,omitempty"`
	ReferenceTable   string   `yaml:"reference_table"`
	ReferenceColumns []string `yaml:"reference_columns"`
	Comment          string   `yaml:"comment,omitempty"`
}

type CheckConstraintSchema struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Comment    string `yaml:"comment,omitempty"`
}

type ViewSchema struct {
	Schema  string `yaml:"schema"`
	Name    string `yaml:"name"`
	Body    string `yaml:"body,omitempty"`
	Comment string `yaml:"comment,omitempty"`
}

type ProcedureSchema struct {
	Schema  string `yaml:"schema"`
	Name    string `yaml:"name"`
	Body    string `yaml:"body,omitempty"`
	Comment string `yaml:"comment,omitempty"`
}

type FunctionSchema struct {
	Schema  string `yaml:"schema"`
	Name    string `yaml:"name"`
	Body    string `yaml:"body,omitempty"`
	Comment string `yaml:"comment,omitempty"`
}

type SequenceSchema struct {
	Schema    string `yaml:"schema"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Start     int64  `yaml:"start"`
	Increment int64  `yaml:"increment"`
	Comment   string `yaml:"comment,omitempty"`
}

// TypeParser converts dialect type syntax into a logical type.
type TypeParser interface {
	ParseSQLSyntax(sql string) (types.DbType, error)
}

// DbType parses the column's type syntax with p.
func (c ColumnSchema) DbType(p TypeParser) (types.DbType, error) {
	t, err := p.ParseSQLSyntax(c.Type)
	if err != nil {
		return types.DbType{}, fmt.Errorf("column %s: %w", c.Name, err)
	}
	return t, nil
}

// Table finds a table by schema and name. An empty schema matches any.
// Names compare case-insensitively, as under the default server collation.
func (d *DatabaseSchema) Table(schemaName, name string) *TableSchema {
	for i := range d.Tables {
		t := &d.Tables[i]
		if strings.EqualFold(t.Name, name) && (schemaName == "" || strings.EqualFold(t.Schema, schemaName)) {
			return t
		}
	}
	return nil
}

func (d *DatabaseSchema) View(schemaName, name string) *ViewSchema {
	for i := range d.Views {
		v := &d.Views[i]
		if strings.EqualFold(v.Name, name) && (schemaName == "" || strings.EqualFold(v.Schema, schemaName)) {
			return v
		}
	}
	return nil
}

func (d *DatabaseSchema) Sequence(schemaName, name string) *SequenceSchema {
	for i := range d.Sequences {
		s := &d.Sequences[i]
		if strings.EqualFold(s.Name, name) && (schemaName == "" || strings.EqualFold(s.Schema, schemaName)) {
			return s
		}
	}
	return nil
}

// Column finds a column by name.
func (t *TableSchema) Column(name string) *ColumnSchema {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

func (t *TableSchema) Index(name string) *IndexSchema {
	for i := range t.Indexes {
		if strings.EqualFold(t.Indexes[i].Name, name) {
			return &t.Indexes[i]
		}
	}
	return nil
}

func (t *TableSchema) ForeignKey(name string) *ForeignKeySchema {
	for i := range t.ForeignKeys {
		if strings.EqualFold(t.ForeignKeys[i].Name, name) {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

func (t *TableSchema) CheckConstraint(name string) *CheckConstraintSchema {
	for i := range t.CheckConstraints {
		if strings.EqualFold(t.CheckConstraints[i].Name, name) {
			return &t.CheckConstraints[i]
		}
	}
	return nil
}

// FullName is schema.name, or just name when schema is empty.
func (t *TableSchema) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}
