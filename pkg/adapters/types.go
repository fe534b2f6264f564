package adapters

import (
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// TypeMapper converts between logical types and dialect text.
type TypeMapper interface {
	// ToSQLSyntax renders a column/parameter type, e.g. DECIMAL(18,2).
	ToSQLSyntax(t types.DbType) (string, error)

	// ParseSQLSyntax is the inverse of ToSQLSyntax.
	ParseSQLSyntax(sql string) (types.DbType, error)

	// Literal renders a scalar value as SQL text. hint may be nil.
	Literal(value any, hint *types.DbType) (string, error)
}

// Compiler renders statements to SQL.
type Compiler interface {
	Compile(stmt ast.Statement) (Compiled, error)
}

// Batch is one server round trip: SQL text and the parameters it uses.
type Batch struct {
	SQL    string
	Params []*ast.Parameter
}

// Compiled is the output of one compile call. Most statements produce a
// single batch; some (identity insert) expand to several that must run in
// order.
type Compiled struct {
	Batches   []Batch
	Separator string
}

// SQL joins all batches with the dialect batch separator.
func (c Compiled) SQL() string {
	parts := make([]string, len(c.Batches))
	for i, b := range c.Batches {
		parts[i] = b.SQL
	}
	return strings.Join(parts, c.Separator)
}

// Params returns the parameters of all batches in first-use order, one per
// name.
func (c Compiled) Params() []*ast.Parameter {
	var out []*ast.Parameter
	seen := make(map[string]bool)
	for _, b := range c.Batches {
		for _, p := range b.Params {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out
}
