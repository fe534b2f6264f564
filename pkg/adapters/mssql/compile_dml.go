package mssql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

var joinSQL = map[ast.JoinKind]string{
	ast.InnerJoin: "INNER JOIN",
	ast.LeftJoin:  "LEFT JOIN",
	ast.RightJoin: "RIGHT JOIN",
	ast.FullJoin:  "FULL JOIN",
	ast.CrossJoin: "CROSS JOIN",
}

func (s *state) selectStmt(n *ast.Select) (string, error) {
	if n.Top != nil && (n.Offset != nil || n.Limit != nil) {
		return "", fmt.Errorf("TOP cannot be combined with OFFSET/FETCH")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if n.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if n.Top != nil {
		sb.WriteString("TOP (" + strconv.Itoa(*n.Top) + ") ")
	}

	if len(n.Columns) == 0 {
		sb.WriteString("*")
	} else {
		cols, err := s.exprList(n.Columns)
		if err != nil {
			return "", fmt.Errorf("columns: %w", err)
		}
		sb.WriteString(cols)
	}

	if err := s.fromClause(&sb, n.From, n.Joins); err != nil {
		return "", err
	}

	if n.Where != nil {
		where, err := s.expr(n.Where)
		if err != nil {
			return "", fmt.Errorf("where: %w", err)
		}
		sb.WriteString(" WHERE " + where)
	}

	if len(n.GroupBy) > 0 {
		group, err := s.exprList(n.GroupBy)
		if err != nil {
			return "", fmt.Errorf("group by: %w", err)
		}
		sb.WriteString(" GROUP BY " + group)
	}

	if n.Having != nil {
		having, err := s.expr(n.Having)
		if err != nil {
			return "", fmt.Errorf("having: %w", err)
		}
		sb.WriteString(" HAVING " + having)
	}

	paged := n.Offset != nil || n.Limit != nil
	switch {
	case len(n.OrderBy) > 0:
		order, err := s.orderBy(n.OrderBy)
		if err != nil {
			return "", fmt.Errorf("order by: %w", err)
		}
		sb.WriteString(" ORDER BY " + order)
	case paged && s.p.Pagination == base.PaginationOffsetFetch:
		// OFFSET requires ORDER BY; order by the first select item.
		sb.WriteString(" ORDER BY 1")
	}

	if paged {
		sb.WriteString(s.pagination(n.Offset, n.Limit))
	}
	return sb.String(), nil
}

func (s *state) pagination(offset, limit *int) string {
	off := 0
	if offset != nil {
		off = *offset
	}
	if s.p.Pagination == base.PaginationLimitOffset {
		out := ""
		if limit != nil {
			out += " LIMIT " + strconv.Itoa(*limit)
		}
		return out + " OFFSET " + strconv.Itoa(off)
	}
	out := " OFFSET " + strconv.Itoa(off) + " ROWS"
	if limit != nil {
		out += " FETCH NEXT " + strconv.Itoa(*limit) + " ROWS ONLY"
	}
	return out
}

func (s *state) orderBy(sorts []ast.Sort) (string, error) {
	parts := make([]string, len(sorts))
	for i, o := range sorts {
		sql, err := s.expr(o.Expr)
		if err != nil {
			return "", err
		}
		if o.Desc {
			parts[i] = sql + " DESC"
		} else {
			parts[i] = sql + " ASC"
		}
	}
	return strings.Join(parts, ", "), nil
}

func (s *state) fromClause(sb *strings.Builder, from []ast.Source, joins []ast.Join) error {
	if len(from) == 0 {
		if len(joins) > 0 {
			return &adapters.MissingFieldError{Node: "Join", Field: "From"}
		}
		return nil
	}
	parts := make([]string, len(from))
	for i, src := range from {
		sql, err := s.source(src)
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		parts[i] = sql
	}
	sb.WriteString(" FROM " + strings.Join(parts, ", "))

	for _, j := range joins {
		sql, err := s.join(j)
		if err != nil {
			return fmt.Errorf("join: %w", err)
		}
		sb.WriteString(" " + sql)
	}
	return nil
}

func (s *state) source(src ast.Source) (string, error) {
	switch n := src.(type) {
	case *ast.Table:
		sql := s.p.QuoteObject(n.Name)
		if n.Alias != "" {
			sql = s.p.AliasSource(sql, n.Alias)
		}
		return sql, nil
	case *ast.Derived:
		if n.Query == nil {
			return "", &adapters.MissingFieldError{Node: "Derived", Field: "Query"}
		}
		if n.Alias == "" {
			return "", &adapters.MissingFieldError{Node: "Derived", Field: "Alias"}
		}
		q, err := s.selectStmt(n.Query)
		if err != nil {
			return "", err
		}
		return s.p.AliasSource("("+q+")", n.Alias), nil
	case *ast.TableVariableRef:
		sql := s.p.Variant(n.Name)
		if n.Alias != "" {
			sql = s.p.AliasSource(sql, n.Alias)
		}
		return sql, nil
	case nil:
		return "", &adapters.MissingFieldError{Node: "source", Field: "Source"}
	default:
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("%T", src)}
	}
}

func (s *state) join(j ast.Join) (string, error) {
	kw, ok := joinSQL[j.Kind]
	if !ok {
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("join kind %d", j.Kind)}
	}
	src, err := s.source(j.Source)
	if err != nil {
		return "", err
	}
	if j.Kind == ast.CrossJoin {
		return kw + " " + src, nil
	}
	if j.On == nil {
		return "", &adapters.MissingFieldError{Node: "Join", Field: "On"}
	}
	on, err := s.expr(j.On)
	if err != nil {
		return "", err
	}
	return kw + " " + src + " ON " + on, nil
}

func (s *state) quoteColumns(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = s.p.Quote(c)
	}
	return strings.Join(parts, ", ")
}

func (s *state) insertBody(n *ast.Insert) (string, error) {
	if n.Table.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Insert", Field: "Table"}
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + s.p.QuoteObject(n.Table))
	if len(n.Columns) > 0 {
		sb.WriteString("(" + s.quoteColumns(n.Columns) + ")")
	}

	switch {
	case n.Query != nil:
		q, err := s.selectStmt(n.Query)
		if err != nil {
			return "", fmt.Errorf("query: %w", err)
		}
		sb.WriteString(" " + q)
	case len(n.Values) > 0:
		rows := make([]string, len(n.Values))
		for i, row := range n.Values {
			if len(n.Columns) > 0 && len(row) != len(n.Columns) {
				return "", fmt.Errorf("values row %d has %d items, want %d", i, len(row), len(n.Columns))
			}
			vals, err := s.exprList(row)
			if err != nil {
				return "", fmt.Errorf("values row %d: %w", i, err)
			}
			rows[i] = "(" + vals + ")"
		}
		sb.WriteString(" VALUES " + strings.Join(rows, ", "))
	default:
		sb.WriteString(" DEFAULT VALUES")
	}
	return sb.String(), nil
}

// identityInsertInline renders an identity insert nested in a larger
// statement, where separate batches are not possible.
func (s *state) identityInsertInline(n *ast.Insert) (string, error) {
	body, err := s.insertBody(n)
	if err != nil {
		return "", err
	}
	table := s.p.QuoteObject(n.Table)
	return "SET IDENTITY_INSERT " + table + " ON\n" + body + "\nSET IDENTITY_INSERT " + table + " OFF", nil
}

func (s *state) update(n *ast.Update) (string, error) {
	if n.Table.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Update", Field: "Table"}
	}
	if len(n.Sets) == 0 {
		return "", &adapters.MissingFieldError{Node: "Update", Field: "Sets"}
	}

	target := s.p.QuoteObject(n.Table)
	if n.Alias != "" {
		target = s.p.Quote(n.Alias)
	}

	sets := make([]string, len(n.Sets))
	for i, a := range n.Sets {
		v, err := s.expr(a.Value)
		if err != nil {
			return "", fmt.Errorf("set %s: %w", a.Column, err)
		}
		sets[i] = s.p.Quote(a.Column) + " = " + v
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + target + " SET " + strings.Join(sets, ", "))
	if err := s.fromClause(&sb, s.dmlFrom(n.Table, n.Alias, n.From), n.Joins); err != nil {
		return "", err
	}
	if n.Where != nil {
		where, err := s.expr(n.Where)
		if err != nil {
			return "", fmt.Errorf("where: %w", err)
		}
		sb.WriteString(" WHERE " + where)
	}
	return sb.String(), nil
}

// dmlFrom returns the FROM sources of an UPDATE/DELETE. An aliased target
// must appear in FROM for the alias to resolve.
func (s *state) dmlFrom(table ast.ObjectName, alias string, from []ast.Source) []ast.Source {
	if alias == "" {
		return from
	}
	for _, src := range from {
		if t, ok := src.(*ast.Table); ok && t.Alias == alias {
			return from
		}
	}
	return append([]ast.Source{ast.From(table, alias)}, from...)
}

func (s *state) delete(n *ast.Delete) (string, error) {
	if n.Table.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Delete", Field: "Table"}
	}

	var sb strings.Builder
	from := s.dmlFrom(n.Table, n.Alias, n.From)
	if len(from) == 0 && len(n.Joins) == 0 {
		sb.WriteString("DELETE FROM " + s.p.QuoteObject(n.Table))
	} else {
		if len(from) == 0 {
			from = []ast.Source{ast.From(n.Table, "")}
		}
		target := s.p.QuoteObject(n.Table)
		if n.Alias != "" {
			target = s.p.Quote(n.Alias)
		}
		sb.WriteString("DELETE " + target)
		if err := s.fromClause(&sb, from, n.Joins); err != nil {
			return "", err
		}
	}

	if n.Where != nil {
		where, err := s.expr(n.Where)
		if err != nil {
			return "", fmt.Errorf("where: %w", err)
		}
		sb.WriteString(" WHERE " + where)
	}
	return sb.String(), nil
}

func (s *state) execute(n *ast.Execute) (string, error) {
	if n.Proc.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Execute", Field: "Proc"}
	}

	ret := n.Return
	if ret == nil {
		ret = ast.Out(defaultReturnParam, types.Int32())
	}
	retSQL, err := s.parameter(ret)
	if err != nil {
		return "", fmt.Errorf("return: %w", err)
	}

	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		sql, err := s.expr(a)
		if err != nil {
			return "", fmt.Errorf("arg %d: %w", i, err)
		}
		if p, ok := a.(*ast.Parameter); ok && p.Direction == ast.DirectionOut {
			sql += " " + s.p.ParameterOutWord
		}
		args[i] = sql
	}

	sql := "EXECUTE " + retSQL + " = " + s.p.QuoteObject(n.Proc)
	if len(args) > 0 {
		sql += " " + strings.Join(args, ", ")
	}
	return sql, nil
}
