package mssql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

func (s *state) members(members []ast.TableMember) ([]string, error) {
	out := make([]string, len(members))
	for i, m := range members {
		sql, err := s.member(m)
		if err != nil {
			return nil, err
		}
		out[i] = sql
	}
	return out, nil
}

func (s *state) member(m ast.TableMember) (string, error) {
	switch n := m.(type) {
	case *ast.ColumnDef:
		return s.column(n)
	case *ast.PrimaryKeyDef:
		if len(n.Columns) == 0 {
			return "", &adapters.MissingFieldError{Node: "PrimaryKeyDef", Field: "Columns"}
		}
		kw := "PRIMARY KEY"
		if n.NonClustered {
			kw += " NONCLUSTERED"
		}
		return s.constraintName(n.Name) + kw + "(" + s.keyColumns(n.Columns) + ")", nil
	case *ast.UniqueKeyDef:
		if len(n.Columns) == 0 {
			return "", &adapters.MissingFieldError{Node: "UniqueKeyDef", Field: "Columns"}
		}
		return s.constraintName(n.Name) + "UNIQUE(" + s.keyColumns(n.Columns) + ")", nil
	case *ast.ForeignKeyDef:
		if len(n.Columns) == 0 {
			return "", &adapters.MissingFieldError{Node: "ForeignKeyDef", Field: "Columns"}
		}
		if n.ReferenceTable.Name == "" {
			return "", &adapters.MissingFieldError{Node: "ForeignKeyDef", Field: "ReferenceTable"}
		}
		if len(n.ReferenceColumns) != len(n.Columns) {
			return "", fmt.Errorf("foreign key %s: %d columns reference %d", n.Name, len(n.Columns), len(n.ReferenceColumns))
		}
		return s.constraintName(n.Name) +
			"FOREIGN KEY(" + s.quoteColumns(n.Columns) + ") REFERENCES " +
			s.p.QuoteObject(n.ReferenceTable) + "(" + s.quoteColumns(n.ReferenceColumns) + ")", nil
	case *ast.CheckDef:
		if n.Cond == nil {
			return "", &adapters.MissingFieldError{Node: "CheckDef", Field: "Cond"}
		}
		cond, err := s.expr(n.Cond)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", n.Name, err)
		}
		return s.constraintName(n.Name) + "CHECK (" + cond + ")", nil
	case nil:
		return "", &adapters.MissingFieldError{Node: "table", Field: "Members"}
	default:
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("%T", m)}
	}
}

func (s *state) constraintName(name string) string {
	if name == "" {
		return ""
	}
	return "CONSTRAINT " + s.p.Quote(name) + " "
}

func (s *state) keyColumns(cols []ast.KeyColumn) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		dir := " ASC"
		if c.Desc {
			dir = " DESC"
		}
		parts[i] = s.p.Quote(c.Name) + dir
	}
	return strings.Join(parts, ", ")
}

// column renders a column definition. Clause order follows the T-SQL
// grammar: type, nullability, identity, primary key, default, check.
// A computed column carries no type.
func (s *state) column(c *ast.ColumnDef) (string, error) {
	if c.Name == "" {
		return "", &adapters.MissingFieldError{Node: "ColumnDef", Field: "Name"}
	}
	name := s.p.Quote(c.Name)

	if c.Computed != nil {
		expr, err := s.expr(c.Computed)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		return name + " AS (" + expr + ")", nil
	}

	typ, err := ToSQLSyntax(c.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", c.Name, err)
	}

	var sb strings.Builder
	sb.WriteString(name + " " + typ)
	if c.Nullable {
		sb.WriteString(" NULL")
	} else {
		sb.WriteString(" NOT NULL")
	}
	if id := c.Identity; id != nil {
		if id.Increment == 0 {
			return "", fmt.Errorf("column %s: identity increment must not be zero", c.Name)
		}
		sb.WriteString(" IDENTITY(" + strconv.FormatInt(id.Start, 10) + ", " + strconv.FormatInt(id.Increment, 10) + ")")
	}
	if pk := c.PrimaryKey; pk != nil {
		sb.WriteString(" PRIMARY KEY")
		if pk.NonClustered {
			sb.WriteString(" NONCLUSTERED")
		}
	}
	if c.Default != nil {
		def, err := s.expr(c.Default)
		if err != nil {
			return "", fmt.Errorf("column %s default: %w", c.Name, err)
		}
		sb.WriteString(" DEFAULT (" + def + ")")
	}
	if c.Check != nil {
		check, err := s.expr(c.Check)
		if err != nil {
			return "", fmt.Errorf("column %s check: %w", c.Name, err)
		}
		sb.WriteString(" CHECK (" + check + ")")
	}
	return sb.String(), nil
}

func (s *state) createTable(n *ast.CreateTable) (string, error) {
	if n.Name.Name == "" {
		return "", &adapters.MissingFieldError{Node: "CreateTable", Field: "Name"}
	}
	if len(n.Members) == 0 {
		return "", &adapters.MissingFieldError{Node: "CreateTable", Field: "Members"}
	}
	members, err := s.members(n.Members)
	if err != nil {
		return "", err
	}
	for i := range members {
		members[i] = "  " + members[i]
	}
	return "CREATE TABLE " + s.p.QuoteObject(n.Name) + " (\n" + strings.Join(members, ",\n") + "\n)", nil
}

func (s *state) alterTable(n *ast.AlterTable) (string, error) {
	if n.Name.Name == "" {
		return "", &adapters.MissingFieldError{Node: "AlterTable", Field: "Name"}
	}
	prefix := "ALTER TABLE " + s.p.QuoteObject(n.Name) + " "

	switch a := n.Action.(type) {
	case nil:
		return "", &adapters.MissingFieldError{Node: "AlterTable", Field: "Action"}
	case *ast.AddMembers:
		if len(a.Members) == 0 {
			return "", &adapters.MissingFieldError{Node: "AddMembers", Field: "Members"}
		}
		members, err := s.members(a.Members)
		if err != nil {
			return "", err
		}
		return prefix + "ADD " + strings.Join(members, ", "), nil
	case *ast.DropColumn:
		if a.Name == "" {
			return "", &adapters.MissingFieldError{Node: "DropColumn", Field: "Name"}
		}
		return prefix + "DROP COLUMN " + s.p.Quote(a.Name), nil
	case *ast.DropConstraint:
		if a.Name == "" {
			return "", &adapters.MissingFieldError{Node: "DropConstraint", Field: "Name"}
		}
		return prefix + "DROP CONSTRAINT " + s.p.Quote(a.Name), nil
	case *ast.AlterColumn:
		if a.Name == "" {
			return "", &adapters.MissingFieldError{Node: "AlterColumn", Field: "Name"}
		}
		typ, err := ToSQLSyntax(a.Type)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", a.Name, err)
		}
		null := " NOT NULL"
		if a.Nullable {
			null = " NULL"
		}
		return prefix + "ALTER COLUMN " + s.p.Quote(a.Name) + " " + typ + null, nil
	default:
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("%T", n.Action)}
	}
}

func (s *state) createIndex(n *ast.CreateIndex) (string, error) {
	if n.Name == "" {
		return "", &adapters.MissingFieldError{Node: "CreateIndex", Field: "Name"}
	}
	if n.Table.Name == "" {
		return "", &adapters.MissingFieldError{Node: "CreateIndex", Field: "Table"}
	}
	if len(n.Columns) == 0 {
		return "", &adapters.MissingFieldError{Node: "CreateIndex", Field: "Columns"}
	}
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if n.Unique {
		sb.WriteString("UNIQUE ")
	}
	if n.Clustered {
		sb.WriteString("CLUSTERED ")
	}
	sb.WriteString("INDEX " + s.p.Quote(n.Name) + " ON " + s.p.QuoteObject(n.Table) + "(" + s.keyColumns(n.Columns) + ")")
	return sb.String(), nil
}

func (s *state) dropIndex(n *ast.DropIndex) (string, error) {
	if n.Name == "" {
		return "", &adapters.MissingFieldError{Node: "DropIndex", Field: "Name"}
	}
	if n.Table.Name == "" {
		return "", &adapters.MissingFieldError{Node: "DropIndex", Field: "Table"}
	}
	return "DROP INDEX " + s.p.Quote(n.Name) + " ON " + s.p.QuoteObject(n.Table), nil
}

func (s *state) view(verb string, n *ast.ViewDef) (string, error) {
	if n.Name.Name == "" {
		return "", &adapters.MissingFieldError{Node: "View", Field: "Name"}
	}
	if n.Body == nil {
		return "", &adapters.MissingFieldError{Node: "View " + n.Name.Name, Field: "Body"}
	}
	body, err := s.selectStmt(n.Body)
	if err != nil {
		return "", fmt.Errorf("body: %w", err)
	}
	return verb + " VIEW " + s.p.QuoteObject(n.Name) + " AS\n" + body, nil
}

func (s *state) paramDecl(name, typ string, def ast.Expression, out bool) (string, error) {
	sql := s.p.Parameter(name) + " " + typ
	if def != nil {
		d, err := s.expr(def)
		if err != nil {
			return "", fmt.Errorf("default: %w", err)
		}
		sql += " = " + d
	}
	if out {
		sql += " " + s.p.ParameterOutWord
	}
	return sql, nil
}

func (s *state) procedure(verb string, n *ast.ProcedureDef) (string, error) {
	if n.Name.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Procedure", Field: "Name"}
	}
	if n.Body == nil {
		return "", &adapters.MissingFieldError{Node: "Procedure " + n.Name.Name, Field: "Body"}
	}

	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		if p.Name == "" {
			return "", &adapters.MissingFieldError{Node: "ProcedureParam", Field: "Name"}
		}
		typ, err := ToSQLSyntax(p.Type)
		if err != nil {
			return "", fmt.Errorf("param %s: %w", p.Name, err)
		}
		decl, err := s.paramDecl(p.Name, typ, p.Default, p.Direction == ast.DirectionOut)
		if err != nil {
			return "", fmt.Errorf("param %s: %w", p.Name, err)
		}
		params[i] = decl
	}

	body, err := s.statement(n.Body)
	if err != nil {
		return "", fmt.Errorf("body: %w", err)
	}

	head := verb + " PROCEDURE " + s.p.QuoteObject(n.Name)
	if len(params) > 0 {
		head += " (" + strings.Join(params, ", ") + ")"
	}
	return head + "\nAS\n" + body, nil
}

func (s *state) function(verb string, n *ast.FunctionDef) (string, error) {
	if n.Name.Name == "" {
		return "", &adapters.MissingFieldError{Node: "Function", Field: "Name"}
	}
	if n.Body == nil {
		return "", &adapters.MissingFieldError{Node: "Function " + n.Name.Name, Field: "Body"}
	}
	if n.Returns == nil && n.ReturnsTable == nil {
		return "", &adapters.MissingFieldError{Node: "Function " + n.Name.Name, Field: "Returns"}
	}

	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		if p.Name == "" {
			return "", &adapters.MissingFieldError{Node: "FunctionParam", Field: "Name"}
		}
		typ, err := ToSQLSyntax(p.Type)
		if err != nil {
			return "", fmt.Errorf("param %s: %w", p.Name, err)
		}
		decl, err := s.paramDecl(p.Name, typ, p.Default, false)
		if err != nil {
			return "", fmt.Errorf("param %s: %w", p.Name, err)
		}
		params[i] = decl
	}

	var returns string
	if n.ReturnsTable != nil {
		t, err := s.tableVariable(n.ReturnsTable)
		if err != nil {
			return "", fmt.Errorf("returns: %w", err)
		}
		returns = t
	} else {
		t, err := ToSQLSyntax(*n.Returns)
		if err != nil {
			return "", fmt.Errorf("returns: %w", err)
		}
		returns = t
	}

	body, err := s.statement(n.Body)
	if err != nil {
		return "", fmt.Errorf("body: %w", err)
	}
	return verb + " FUNCTION " + s.p.QuoteObject(n.Name) + "(" + strings.Join(params, ", ") + ")\n" +
		"RETURNS " + returns + "\nAS\n" + body, nil
}

func (s *state) createSequence(n *ast.CreateSequence) (string, error) {
	if n.Name.Name == "" {
		return "", &adapters.MissingFieldError{Node: "CreateSequence", Field: "Name"}
	}
	if n.Type == nil {
		return "", &adapters.MissingFieldError{Node: "CreateSequence " + n.Name.Name, Field: "Type"}
	}
	typ, err := ToSQLSyntax(*n.Type)
	if err != nil {
		return "", err
	}
	inc := n.Increment
	if inc == 0 {
		inc = 1
	}
	return fmt.Sprintf("CREATE SEQUENCE %s AS %s START WITH %d INCREMENT BY %d",
		s.p.QuoteObject(n.Name), typ, n.Start, inc), nil
}

func (s *state) createDatabase(n *ast.CreateDatabase) (string, error) {
	if n.Name == "" {
		return "", &adapters.MissingFieldError{Node: "CreateDatabase", Field: "Name"}
	}
	sql := "CREATE DATABASE " + s.p.Quote(n.Name)
	if n.Collate != "" {
		sql += " COLLATE " + n.Collate
	}
	return sql, nil
}

func (s *state) alterDatabase(n *ast.AlterDatabase) (string, error) {
	if n.Name == "" {
		return "", &adapters.MissingFieldError{Node: "AlterDatabase", Field: "Name"}
	}
	if n.Collate == "" {
		return "", &adapters.MissingFieldError{Node: "AlterDatabase", Field: "Collate"}
	}
	return "ALTER DATABASE " + s.p.Quote(n.Name) + " COLLATE " + n.Collate, nil
}
