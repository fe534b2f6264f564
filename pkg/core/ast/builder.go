package ast

import "github.com/ruslano69/mssqldialect/pkg/core/types"

// Shorthand constructors for authoring trees by hand. They only allocate
// nodes; nothing is validated until compile time.

func Col(name string) *Field { return &Field{Name: name} }

// TCol is a table-qualified column.
func TCol(table, name string) *Field { return &Field{Name: name, Table: table} }

func Lit(v any) *Literal { return &Literal{Value: v} }

// TypedLit is a literal with an explicit rendering type.
func TypedLit(v any, t types.DbType) *Literal { return &Literal{Value: v, Type: &t} }

func Param(name string, v any) *Parameter { return &Parameter{Name: name, Value: v} }

// Out declares an output parameter of type t.
func Out(name string, t types.DbType) *Parameter {
	return &Parameter{Name: name, Type: &t, Direction: DirectionOut}
}

func Var(name string) *Variant { return &Variant{Name: name} }

func RawSQL(sql string) *Raw { return &Raw{SQL: sql} }

func As(e Expression, name string) *Alias { return &Alias{Expr: e, Name: name} }

func From(name ObjectName, alias string) *Table { return &Table{Name: name, Alias: alias} }

func bin(op BinaryOperator, l, r Expression) *Binary { return &Binary{Op: op, Left: l, Right: r} }

func Eq(l, r Expression) *Binary     { return bin(OpEq, l, r) }
func Neq(l, r Expression) *Binary    { return bin(OpNeq, l, r) }
func Lt(l, r Expression) *Binary     { return bin(OpLt, l, r) }
func Lte(l, r Expression) *Binary    { return bin(OpLte, l, r) }
func Gt(l, r Expression) *Binary     { return bin(OpGt, l, r) }
func Gte(l, r Expression) *Binary    { return bin(OpGte, l, r) }
func Like(l, r Expression) *Binary   { return bin(OpLike, l, r) }
func Add(l, r Expression) *Binary    { return bin(OpAdd, l, r) }
func Concat(l, r Expression) *Binary { return bin(OpConcat, l, r) }

// And folds conditions left to right. Nil conditions are skipped; the
// result is nil when nothing remains.
func And(conds ...Expression) Expression { return fold(OpAnd, conds) }

// Or folds conditions left to right, skipping nils.
func Or(conds ...Expression) Expression { return fold(OpOr, conds) }

func fold(op BinaryOperator, conds []Expression) Expression {
	var out Expression
	for _, c := range conds {
		if c == nil {
			continue
		}
		if out == nil {
			out = c
			continue
		}
		out = bin(op, out, c)
	}
	return out
}

func Not(e Expression) *Unary       { return &Unary{Op: OpNot, Operand: e} }
func IsNull(e Expression) *Unary    { return &Unary{Op: OpIsNull, Operand: e} }
func IsNotNull(e Expression) *Unary { return &Unary{Op: OpIsNotNull, Operand: e} }

// Fn calls a builtin function.
func Fn(name string, args ...Expression) *Call {
	return &Call{Func: ObjectName{Name: name}, Builtin: true, Args: args}
}

// Std calls a portable function resolved by the dialect translator.
func Std(name string, args ...Expression) *StdCall { return &StdCall{Func: name, Args: args} }

func Asc(e Expression) Sort  { return Sort{Expr: e} }
func Desc(e Expression) Sort { return Sort{Expr: e, Desc: true} }

// Ptr returns a pointer to v, for optional fields such as Select.Offset.
func Ptr[T any](v T) *T { return &v }
