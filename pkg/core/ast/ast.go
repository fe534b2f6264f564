// Package ast defines the dialect-neutral SQL syntax tree consumed by the
// dialect compilers.
//
// Node categories are closed: membership is granted by unexported marker
// methods, so a dialect compiler can switch over the concrete types and
// treat anything else as unsupported.
package ast

import (
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// Node is the base interface of every tree node.
type Node interface {
	node()
	String() string
}

// Expression is a scalar or boolean value.
type Expression interface {
	Node
	expression()
}

// Statement is a top-level or nested SQL statement.
type Statement interface {
	Node
	statement()
}

// ObjectName is a possibly qualified catalog object name.
type ObjectName struct {
	Name     string
	Schema   string
	Database string
}

// Name builds an ObjectName from its parts, innermost first:
// Name("Items"), Name("Items", "dbo"), Name("Items", "dbo", "Shop").
func Name(name string, qualifiers ...string) ObjectName {
	o := ObjectName{Name: name}
	if len(qualifiers) > 0 {
		o.Schema = qualifiers[0]
	}
	if len(qualifiers) > 1 {
		o.Database = qualifiers[1]
	}
	return o
}

func (o ObjectName) IsZero() bool {
	return o.Name == "" && o.Schema == "" && o.Database == ""
}

func (o ObjectName) String() string {
	parts := make([]string, 0, 3)
	if o.Database != "" {
		parts = append(parts, o.Database)
	}
	if o.Schema != "" || o.Database != "" {
		parts = append(parts, o.Schema)
	}
	parts = append(parts, o.Name)
	return strings.Join(parts, ".")
}

// Literal is a constant value. Type is an optional rendering hint.
type Literal struct {
	Value any
	Type  *types.DbType
}

func (l *Literal) node()          {}
func (l *Literal) expression()    {}
func (l *Literal) String() string { return "Literal" }

// Field references a column, optionally qualified by a table or alias.
type Field struct {
	Name  string
	Table string
}

func (f *Field) node()       {}
func (f *Field) expression() {}
func (f *Field) String() string {
	if f.Table != "" {
		return "Field: " + f.Table + "." + f.Name
	}
	return "Field: " + f.Name
}

// Star is `*` or `t.*`.
type Star struct {
	Table string
}

func (s *Star) node()          {}
func (s *Star) expression()    {}
func (s *Star) String() string { return "Star" }

// Alias names a select-list expression.
type Alias struct {
	Expr Expression
	Name string
}

func (a *Alias) node()          {}
func (a *Alias) expression()    {}
func (a *Alias) String() string { return "Alias: " + a.Name }

// BinaryOperator enumerates two-operand operators.
type BinaryOperator int

const (
	OpAdd BinaryOperator = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpConcat
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLike
	OpNotLike
	OpAnd
	OpOr
)

var binaryOperatorNames = map[BinaryOperator]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpShl: "<<", OpShr: ">>",
	OpConcat: "||", OpEq: "=", OpNeq: "<>", OpLt: "<", OpLte: "<=",
	OpGt: ">", OpGte: ">=", OpLike: "LIKE", OpNotLike: "NOT LIKE",
	OpAnd: "AND", OpOr: "OR",
}

func (op BinaryOperator) String() string {
	if s, ok := binaryOperatorNames[op]; ok {
		return s
	}
	return "?"
}

// Binary is `Left Op Right`.
type Binary struct {
	Op    BinaryOperator
	Left  Expression
	Right Expression
}

func (b *Binary) node()          {}
func (b *Binary) expression()    {}
func (b *Binary) String() string { return "Binary: " + b.Op.String() }

// UnaryOperator enumerates one-operand operators.
type UnaryOperator int

const (
	OpNeg UnaryOperator = iota + 1
	OpBitNot
	OpNot
	OpIsNull
	OpIsNotNull
)

// Unary is a prefix (-, ~, NOT) or postfix (IS [NOT] NULL) operation.
type Unary struct {
	Op      UnaryOperator
	Operand Expression
}

func (u *Unary) node()          {}
func (u *Unary) expression()    {}
func (u *Unary) String() string { return "Unary" }

// Call invokes a function. Builtin functions are emitted unquoted, user
// functions are quoted and schema-qualified.
type Call struct {
	Func    ObjectName
	Builtin bool
	Args    []Expression
}

func (c *Call) node()          {}
func (c *Call) expression()    {}
func (c *Call) String() string { return "Call: " + c.Func.Name }

// StdCall is a portable function resolved by the dialect's standard
// translator (trim, addDays, nvl, existsTable, ...).
type StdCall struct {
	Func string
	Args []Expression
}

func (s *StdCall) node()          {}
func (s *StdCall) expression()    {}
func (s *StdCall) String() string { return "StdCall: " + s.Func }

// When is one branch of a Case.
type When struct {
	Cond   Expression
	Result Expression
}

// Case is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type Case struct {
	Operand Expression
	Whens   []When
	Else    Expression
}

func (c *Case) node()          {}
func (c *Case) expression()    {}
func (c *Case) String() string { return "Case" }

// Exists is EXISTS(subquery).
type Exists struct {
	Query *Select
	Not   bool
}

func (e *Exists) node()          {}
func (e *Exists) expression()    {}
func (e *Exists) String() string { return "Exists" }

// Subquery is a parenthesised scalar or row-set query.
type Subquery struct {
	Query *Select
}

func (s *Subquery) node()          {}
func (s *Subquery) expression()    {}
func (s *Subquery) String() string { return "Subquery" }

// In is `Expr [NOT] IN (List...)` or `Expr [NOT] IN (Query)`.
type In struct {
	Expr  Expression
	List  []Expression
	Query *Select
	Not   bool
}

func (i *In) node()       {}
func (i *In) expression() {}
func (i *In) String() string {
	if i.Not {
		return "In: NOT IN"
	}
	return "In: IN"
}

// Between is `Expr [NOT] BETWEEN Low AND High`.
type Between struct {
	Expr Expression
	Low  Expression
	High Expression
	Not  bool
}

func (b *Between) node()          {}
func (b *Between) expression()    {}
func (b *Between) String() string { return "Between" }

// Direction of a bound parameter.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Parameter is a bound value referenced by name. OUT parameters must carry
// an explicit Type because Value may be absent.
type Parameter struct {
	Name      string
	Value     any
	Type      *types.DbType
	Direction Direction
}

func (p *Parameter) node()          {}
func (p *Parameter) expression()    {}
func (p *Parameter) String() string { return "Parameter: " + p.Name }

// Variant is a local variable reference (@name in T-SQL).
type Variant struct {
	Name string
}

func (v *Variant) node()          {}
func (v *Variant) expression()    {}
func (v *Variant) String() string { return "Variant: " + v.Name }

// TypeRef carries a type where an expression is expected, e.g. the target
// of convert().
type TypeRef struct {
	Type types.DbType
}

func (t *TypeRef) node()          {}
func (t *TypeRef) expression()    {}
func (t *TypeRef) String() string { return "TypeRef: " + t.Type.String() }

// Group wraps an expression in parentheses.
type Group struct {
	Expr Expression
}

func (g *Group) node()          {}
func (g *Group) expression()    {}
func (g *Group) String() string { return "Group" }

// Raw is dialect text emitted verbatim. It is both an expression and a
// statement.
type Raw struct {
	SQL string
}

func (r *Raw) node()          {}
func (r *Raw) expression()    {}
func (r *Raw) statement()     {}
func (r *Raw) String() string { return "Raw" }

// Sort is one ORDER BY item.
type Sort struct {
	Expr Expression
	Desc bool
}
