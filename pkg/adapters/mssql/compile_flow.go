package mssql

import (
	"fmt"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

func (s *state) declare(n *ast.Declare) (string, error) {
	if len(n.Items) == 0 {
		return "", &adapters.MissingFieldError{Node: "Declare", Field: "Items"}
	}
	items := make([]string, len(n.Items))
	for i, d := range n.Items {
		sql, err := s.declaration(d)
		if err != nil {
			return "", err
		}
		items[i] = sql
	}
	return "DECLARE " + strings.Join(items, ", "), nil
}

func (s *state) declaration(d ast.Declaration) (string, error) {
	switch n := d.(type) {
	case *ast.VariableDecl:
		if n.Name == "" {
			return "", &adapters.MissingFieldError{Node: "VariableDecl", Field: "Name"}
		}
		typ, err := ToSQLSyntax(n.Type)
		if err != nil {
			return "", fmt.Errorf("%s: %w", n.Name, err)
		}
		return s.p.Variant(n.Name) + " " + typ, nil
	case *ast.TableVariableDecl:
		return s.tableVariable(n)
	case nil:
		return "", &adapters.MissingFieldError{Node: "Declare", Field: "Items"}
	default:
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("%T", d)}
	}
}

// tableVariable renders @name TABLE(members).
func (s *state) tableVariable(n *ast.TableVariableDecl) (string, error) {
	if n.Name == "" {
		return "", &adapters.MissingFieldError{Node: "TableVariableDecl", Field: "Name"}
	}
	if len(n.Members) == 0 {
		return "", &adapters.MissingFieldError{Node: "TableVariableDecl", Field: "Members"}
	}
	members, err := s.members(n.Members)
	if err != nil {
		return "", fmt.Errorf("%s: %w", n.Name, err)
	}
	return s.p.Variant(n.Name) + " TABLE(" + strings.Join(members, ", ") + ")", nil
}

func (s *state) assign(n *ast.Assign) (string, error) {
	target, err := s.expr(n.Target)
	if err != nil {
		return "", fmt.Errorf("target: %w", err)
	}
	value, err := s.expr(n.Value)
	if err != nil {
		return "", fmt.Errorf("value: %w", err)
	}
	return "SET " + target + " = " + value, nil
}

func (s *state) returnStmt(n *ast.Return) (string, error) {
	if n.Value == nil {
		return "RETURN", nil
	}
	v, err := s.expr(n.Value)
	if err != nil {
		return "", err
	}
	return "RETURN " + v, nil
}

func (s *state) block(n *ast.Block) (string, error) {
	if len(n.Statements) == 0 {
		return "", &adapters.MissingFieldError{Node: "Block", Field: "Statements"}
	}
	var sb strings.Builder
	sb.WriteString("BEGIN\n")
	for i, child := range n.Statements {
		sql, err := s.statement(child)
		if err != nil {
			return "", fmt.Errorf("statement %d: %w", i, err)
		}
		sb.WriteString(indent(sql) + "\n")
	}
	sb.WriteString("END")
	return sb.String(), nil
}

func (s *state) ifStmt(n *ast.If) (string, error) {
	if n.Then == nil {
		return "", &adapters.MissingFieldError{Node: "If", Field: "Then"}
	}
	cond, err := s.expr(n.Cond)
	if err != nil {
		return "", fmt.Errorf("condition: %w", err)
	}
	then, err := s.statement(n.Then)
	if err != nil {
		return "", fmt.Errorf("then: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("IF (" + cond + ")\n" + indent(then))
	for i, ei := range n.ElseIfs {
		c, err := s.expr(ei.Cond)
		if err != nil {
			return "", fmt.Errorf("else if %d: %w", i, err)
		}
		if ei.Then == nil {
			return "", &adapters.MissingFieldError{Node: "ElseIf", Field: "Then"}
		}
		body, err := s.statement(ei.Then)
		if err != nil {
			return "", fmt.Errorf("else if %d: %w", i, err)
		}
		sb.WriteString("\nELSE IF (" + c + ")\n" + indent(body))
	}
	if n.Else != nil {
		body, err := s.statement(n.Else)
		if err != nil {
			return "", fmt.Errorf("else: %w", err)
		}
		sb.WriteString("\nELSE\n" + indent(body))
	}
	return sb.String(), nil
}

func (s *state) while(n *ast.While) (string, error) {
	if n.Body == nil {
		return "", &adapters.MissingFieldError{Node: "While", Field: "Body"}
	}
	cond, err := s.expr(n.Cond)
	if err != nil {
		return "", fmt.Errorf("condition: %w", err)
	}
	body, err := s.statement(n.Body)
	if err != nil {
		return "", fmt.Errorf("body: %w", err)
	}
	return "WHILE (" + cond + ")\n" + indent(body), nil
}

func (s *state) annotation(n *ast.Annotation) string {
	lines := strings.Split(n.Text, "\n")
	if n.Style == ast.AnnotationBlock {
		var sb strings.Builder
		sb.WriteString("/**\n")
		for _, l := range lines {
			l = strings.ReplaceAll(l, "*/", "* /")
			sb.WriteString(strings.TrimRight(" * "+l, " ") + "\n")
		}
		sb.WriteString(" */")
		return sb.String()
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight("-- "+l, " ")
	}
	return strings.Join(lines, "\n")
}
