package mssql

import (
	"fmt"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

// Operator precedence, lowest binds loosest.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdditive
	precMultiplicative
	precUnary
	precAtom
)

var binaryPrec = map[ast.BinaryOperator]int{
	ast.OpOr:      precOr,
	ast.OpAnd:     precAnd,
	ast.OpEq:      precCompare,
	ast.OpNeq:     precCompare,
	ast.OpLt:      precCompare,
	ast.OpLte:     precCompare,
	ast.OpGt:      precCompare,
	ast.OpGte:     precCompare,
	ast.OpLike:    precCompare,
	ast.OpNotLike: precCompare,
	ast.OpAdd:     precAdditive,
	ast.OpSub:     precAdditive,
	ast.OpConcat:  precAdditive,
	ast.OpBitAnd:  precAdditive,
	ast.OpBitOr:   precAdditive,
	ast.OpBitXor:  precAdditive,
	ast.OpMul:     precMultiplicative,
	ast.OpDiv:     precMultiplicative,
	ast.OpMod:     precMultiplicative,
	ast.OpShl:     precMultiplicative,
	ast.OpShr:     precMultiplicative,
}

var binarySQL = map[ast.BinaryOperator]string{
	ast.OpAdd:     "+",
	ast.OpSub:     "-",
	ast.OpMul:     "*",
	ast.OpDiv:     "/",
	ast.OpMod:     "%",
	ast.OpBitAnd:  "&",
	ast.OpBitOr:   "|",
	ast.OpBitXor:  "^",
	ast.OpConcat:  "+",
	ast.OpEq:      "=",
	ast.OpNeq:     "<>",
	ast.OpLt:      "<",
	ast.OpLte:     "<=",
	ast.OpGt:      ">",
	ast.OpGte:     ">=",
	ast.OpLike:    "LIKE",
	ast.OpNotLike: "NOT LIKE",
	ast.OpAnd:     "AND",
	ast.OpOr:      "OR",
}

// associative operators keep a same-operator right operand unparenthesised.
var associative = map[ast.BinaryOperator]bool{
	ast.OpAnd:    true,
	ast.OpOr:     true,
	ast.OpAdd:    true,
	ast.OpMul:    true,
	ast.OpConcat: true,
	ast.OpBitAnd: true,
	ast.OpBitOr:  true,
	ast.OpBitXor: true,
}

func precedence(e ast.Expression) int {
	switch n := e.(type) {
	case *ast.Binary:
		if p, ok := binaryPrec[n.Op]; ok {
			return p
		}
	case *ast.Unary:
		switch n.Op {
		case ast.OpNot:
			return precNot
		case ast.OpIsNull, ast.OpIsNotNull:
			return precCompare
		}
		return precUnary
	case *ast.In, *ast.Between:
		return precCompare
	}
	return precAtom
}

func (s *state) expr(e ast.Expression) (string, error) {
	switch n := e.(type) {
	case nil:
		return "", &adapters.MissingFieldError{Node: "expression", Field: "Expression"}
	case *ast.Literal:
		return Literal(n.Value, n.Type)
	case *ast.Field:
		if n.Name == "" {
			return "", &adapters.MissingFieldError{Node: "Field", Field: "Name"}
		}
		if n.Table != "" {
			return s.p.Quote(n.Table) + "." + s.p.Quote(n.Name), nil
		}
		return s.p.Quote(n.Name), nil
	case *ast.Star:
		if n.Table != "" {
			return s.p.Quote(n.Table) + ".*", nil
		}
		return "*", nil
	case *ast.Alias:
		inner, err := s.expr(n.Expr)
		if err != nil {
			return "", err
		}
		if n.Name == "" {
			return inner, nil
		}
		return s.p.AliasField(inner, n.Name), nil
	case *ast.Binary:
		return s.binary(n)
	case *ast.Unary:
		return s.unary(n)
	case *ast.Call:
		return s.call(n)
	case *ast.StdCall:
		translated, err := s.c.translator.Translate(n.Func, n.Args)
		if err != nil {
			return "", err
		}
		out, err := s.expr(translated)
		if err != nil {
			return "", fmt.Errorf("%s: %w", n.Func, err)
		}
		return out, nil
	case *ast.Case:
		return s.caseExpr(n)
	case *ast.Exists:
		if n.Query == nil {
			return "", &adapters.MissingFieldError{Node: "Exists", Field: "Query"}
		}
		q, err := s.selectStmt(n.Query)
		if err != nil {
			return "", fmt.Errorf("exists: %w", err)
		}
		if n.Not {
			return "NOT EXISTS(" + q + ")", nil
		}
		return "EXISTS(" + q + ")", nil
	case *ast.Subquery:
		if n.Query == nil {
			return "", &adapters.MissingFieldError{Node: "Subquery", Field: "Query"}
		}
		q, err := s.selectStmt(n.Query)
		if err != nil {
			return "", fmt.Errorf("subquery: %w", err)
		}
		return "(" + q + ")", nil
	case *ast.In:
		return s.in(n)
	case *ast.Between:
		return s.between(n)
	case *ast.Parameter:
		return s.parameter(n)
	case *ast.Variant:
		if n.Name == "" {
			return "", &adapters.MissingFieldError{Node: "Variant", Field: "Name"}
		}
		return s.p.Variant(n.Name), nil
	case *ast.TypeRef:
		return ToSQLSyntax(n.Type)
	case *ast.Group:
		inner, err := s.expr(n.Expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *ast.Raw:
		return n.SQL, nil
	default:
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("%T", e)}
	}
}

// operand renders e, parenthesised when it binds looser than the
// surrounding operator.
func (s *state) operand(e ast.Expression, parentPrec int, paren bool) (string, error) {
	sql, err := s.expr(e)
	if err != nil {
		return "", err
	}
	if p := precedence(e); p < parentPrec || (paren && p == parentPrec) {
		return "(" + sql + ")", nil
	}
	return sql, nil
}

func (s *state) binary(n *ast.Binary) (string, error) {
	prec, ok := binaryPrec[n.Op]
	if !ok {
		return "", &adapters.UnsupportedNodeError{Kind: "binary operator " + n.Op.String()}
	}

	// x = NULL never matches; emit the NULL test the caller meant.
	if lit, isLit := n.Right.(*ast.Literal); isLit && lit.Value == nil && (n.Op == ast.OpEq || n.Op == ast.OpNeq) {
		op := ast.OpIsNull
		if n.Op == ast.OpNeq {
			op = ast.OpIsNotNull
		}
		return s.unary(&ast.Unary{Op: op, Operand: n.Left})
	}

	left, err := s.operand(n.Left, prec, false)
	if err != nil {
		return "", err
	}

	switch n.Op {
	case ast.OpShl, ast.OpShr:
		// No shift operators in T-SQL: a << b == a * 2^b.
		right, err := s.expr(n.Right)
		if err != nil {
			return "", err
		}
		op := "*"
		if n.Op == ast.OpShr {
			op = "/"
		}
		return left + " " + op + " POWER(2, " + right + ")", nil
	}

	sameOp := false
	if rb, isBin := n.Right.(*ast.Binary); isBin && rb.Op == n.Op && associative[n.Op] {
		sameOp = true
	}
	right, err := s.operand(n.Right, prec, !sameOp)
	if err != nil {
		return "", err
	}
	return left + " " + binarySQL[n.Op] + " " + right, nil
}

func (s *state) unary(n *ast.Unary) (string, error) {
	prec := precedence(n)
	operand, err := s.operand(n.Operand, prec, false)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case ast.OpNeg:
		// "--" would open a line comment.
		if strings.HasPrefix(operand, "-") {
			return "-(" + operand + ")", nil
		}
		return "-" + operand, nil
	case ast.OpBitNot:
		return "~" + operand, nil
	case ast.OpNot:
		return "NOT " + operand, nil
	case ast.OpIsNull:
		return operand + " IS NULL", nil
	case ast.OpIsNotNull:
		return operand + " IS NOT NULL", nil
	}
	return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("unary operator %d", n.Op)}
}

func (s *state) exprList(list []ast.Expression) (string, error) {
	parts := make([]string, len(list))
	for i, e := range list {
		sql, err := s.expr(e)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return strings.Join(parts, ", "), nil
}

func (s *state) call(n *ast.Call) (string, error) {
	if n.Func.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Call", Field: "Func"}
	}
	args, err := s.exprList(n.Args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", n.Func.Name, err)
	}
	if n.Builtin {
		return n.Func.Name + "(" + args + ")", nil
	}
	// Scalar user functions must be schema-qualified.
	return s.p.QuoteObject(s.p.Qualify(n.Func)) + "(" + args + ")", nil
}

func (s *state) caseExpr(n *ast.Case) (string, error) {
	if len(n.Whens) == 0 {
		return "", &adapters.MissingFieldError{Node: "Case", Field: "Whens"}
	}
	var sb strings.Builder
	sb.WriteString("CASE")
	if n.Operand != nil {
		op, err := s.expr(n.Operand)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + op)
	}
	for _, w := range n.Whens {
		cond, err := s.expr(w.Cond)
		if err != nil {
			return "", fmt.Errorf("case when: %w", err)
		}
		res, err := s.expr(w.Result)
		if err != nil {
			return "", fmt.Errorf("case then: %w", err)
		}
		sb.WriteString(" WHEN " + cond + " THEN " + res)
	}
	if n.Else != nil {
		e, err := s.expr(n.Else)
		if err != nil {
			return "", fmt.Errorf("case else: %w", err)
		}
		sb.WriteString(" ELSE " + e)
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

func (s *state) in(n *ast.In) (string, error) {
	left, err := s.operand(n.Expr, precCompare, true)
	if err != nil {
		return "", err
	}
	kw := " IN "
	if n.Not {
		kw = " NOT IN "
	}

	if n.Query != nil {
		q, err := s.selectStmt(n.Query)
		if err != nil {
			return "", fmt.Errorf("in: %w", err)
		}
		return left + kw + "(" + q + ")", nil
	}
	if len(n.List) == 0 {
		return "", &adapters.MissingFieldError{Node: "In", Field: "List"}
	}
	list, err := s.exprList(n.List)
	if err != nil {
		return "", fmt.Errorf("in: %w", err)
	}
	return left + kw + "(" + list + ")", nil
}

func (s *state) between(n *ast.Between) (string, error) {
	x, err := s.operand(n.Expr, precCompare, true)
	if err != nil {
		return "", err
	}
	low, err := s.operand(n.Low, precCompare, true)
	if err != nil {
		return "", err
	}
	high, err := s.operand(n.High, precCompare, true)
	if err != nil {
		return "", err
	}
	kw := " BETWEEN "
	if n.Not {
		kw = " NOT BETWEEN "
	}
	return x + kw + low + " AND " + high, nil
}

func (s *state) parameter(n *ast.Parameter) (string, error) {
	if n.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Parameter", Field: "Name"}
	}
	if n.Direction == ast.DirectionOut && n.Type == nil {
		return "", &adapters.MissingFieldError{Node: "Parameter " + n.Name, Field: "Type"}
	}
	s.addParam(n)
	return s.p.Parameter(n.Name), nil
}
