package mssql

import (
	"fmt"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

// defaultReturnParam receives a procedure's return status when Execute
// does not name one.
const defaultReturnParam = "returnValue"

// Compiler renders AST statements as T-SQL. It holds no per-call state, so
// one value can be shared by concurrent callers.
type Compiler struct {
	policy     base.Policy
	translator *Translator
}

// NewCompiler creates a compiler for the given policy.
func NewCompiler(policy base.Policy) *Compiler {
	return &Compiler{policy: policy, translator: NewTranslator(policy)}
}

// Policy returns the dialect policy the compiler renders with.
func (c *Compiler) Policy() base.Policy {
	return c.policy
}

// Compile renders stmt. A top-level Insert with IdentityInsert expands to
// three batches; everything else is one batch. On error the returned
// Compiled is empty.
func (c *Compiler) Compile(stmt ast.Statement) (adapters.Compiled, error) {
	out := adapters.Compiled{Separator: c.policy.BatchSeparator}

	if ins, ok := stmt.(*ast.Insert); ok && ins.IdentityInsert {
		s := c.newState()
		sql, err := s.insertBody(ins)
		if err != nil {
			return adapters.Compiled{}, fmt.Errorf("insert: %w", err)
		}
		table := c.policy.QuoteObject(ins.Table)
		out.Batches = []adapters.Batch{
			{SQL: "SET IDENTITY_INSERT " + table + " ON"},
			{SQL: sql, Params: s.params},
			{SQL: "SET IDENTITY_INSERT " + table + " OFF"},
		}
		return out, nil
	}

	s := c.newState()
	sql, err := s.statement(stmt)
	if err != nil {
		return adapters.Compiled{}, err
	}
	out.Batches = []adapters.Batch{{SQL: sql, Params: s.params}}
	return out, nil
}

// CompileExpr renders a single expression, e.g. a column default.
func (c *Compiler) CompileExpr(e ast.Expression) (string, []*ast.Parameter, error) {
	s := c.newState()
	sql, err := s.expr(e)
	if err != nil {
		return "", nil, err
	}
	return sql, s.params, nil
}

// CompileMembers renders table members one per element, in order.
func (c *Compiler) CompileMembers(members []ast.TableMember) ([]string, error) {
	return c.newState().members(members)
}

func (c *Compiler) newState() *state {
	return &state{c: c, p: c.policy}
}

// state accumulates the parameters referenced during one compile call.
type state struct {
	c      *Compiler
	p      base.Policy
	params []*ast.Parameter
}

func (s *state) addParam(p *ast.Parameter) {
	s.params = append(s.params, p)
}

func (s *state) statement(stmt ast.Statement) (string, error) {
	var (
		sql  string
		err  error
		kind string
	)
	switch n := stmt.(type) {
	case nil:
		return "", &adapters.MissingFieldError{Node: "statement", Field: "Statement"}
	case *ast.Select:
		kind = "select"
		sql, err = s.selectStmt(n)
	case *ast.Insert:
		kind = "insert"
		if n.IdentityInsert {
			sql, err = s.identityInsertInline(n)
		} else {
			sql, err = s.insertBody(n)
		}
	case *ast.Update:
		kind = "update"
		sql, err = s.update(n)
	case *ast.Delete:
		kind = "delete"
		sql, err = s.delete(n)
	case *ast.Execute:
		kind = "execute"
		sql, err = s.execute(n)
	case *ast.Declare:
		kind = "declare"
		sql, err = s.declare(n)
	case *ast.Assign:
		kind = "assign"
		sql, err = s.assign(n)
	case *ast.Return:
		kind = "return"
		sql, err = s.returnStmt(n)
	case *ast.Block:
		kind = "block"
		sql, err = s.block(n)
	case *ast.If:
		kind = "if"
		sql, err = s.ifStmt(n)
	case *ast.While:
		kind = "while"
		sql, err = s.while(n)
	case *ast.Break:
		return "BREAK", nil
	case *ast.Continue:
		return "CONTINUE", nil
	case *ast.Annotation:
		return s.annotation(n), nil
	case *ast.Raw:
		return n.SQL, nil
	case *ast.CreateTable:
		kind = "create table"
		sql, err = s.createTable(n)
	case *ast.AlterTable:
		kind = "alter table"
		sql, err = s.alterTable(n)
	case *ast.DropTable:
		return s.dropObject("DropTable", "TABLE", n.Name)
	case *ast.CreateIndex:
		kind = "create index"
		sql, err = s.createIndex(n)
	case *ast.DropIndex:
		kind = "drop index"
		sql, err = s.dropIndex(n)
	case *ast.CreateView:
		kind = "create view"
		sql, err = s.view("CREATE", &n.ViewDef)
	case *ast.AlterView:
		kind = "alter view"
		sql, err = s.view("ALTER", &n.ViewDef)
	case *ast.DropView:
		return s.dropObject("DropView", "VIEW", n.Name)
	case *ast.CreateProcedure:
		kind = "create procedure"
		sql, err = s.procedure("CREATE", &n.ProcedureDef)
	case *ast.AlterProcedure:
		kind = "alter procedure"
		sql, err = s.procedure("ALTER", &n.ProcedureDef)
	case *ast.DropProcedure:
		return s.dropObject("DropProcedure", "PROCEDURE", n.Name)
	case *ast.CreateFunction:
		kind = "create function"
		sql, err = s.function("CREATE", &n.FunctionDef)
	case *ast.AlterFunction:
		kind = "alter function"
		sql, err = s.function("ALTER", &n.FunctionDef)
	case *ast.DropFunction:
		return s.dropObject("DropFunction", "FUNCTION", n.Name)
	case *ast.CreateSequence:
		kind = "create sequence"
		sql, err = s.createSequence(n)
	case *ast.DropSequence:
		return s.dropObject("DropSequence", "SEQUENCE", n.Name)
	case *ast.CreateDatabase:
		kind = "create database"
		sql, err = s.createDatabase(n)
	case *ast.AlterDatabase:
		kind = "alter database"
		sql, err = s.alterDatabase(n)
	case *ast.DropDatabase:
		if n.Name == "" {
			return "", fmt.Errorf("drop database: %w", &adapters.MissingFieldError{Node: "DropDatabase", Field: "Name"})
		}
		return "DROP DATABASE " + s.p.Quote(n.Name), nil
	default:
		return "", &adapters.UnsupportedNodeError{Kind: fmt.Sprintf("%T", stmt)}
	}
	// The kind prefix locates the failing subtree; errors.As still
	// reaches the typed cause.
	if err != nil {
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	return sql, nil
}

// indent prefixes every line of sql with two spaces.
// dropObject renders DROP <keyword> for a schema-scoped object.
func (s *state) dropObject(node, keyword string, name ast.ObjectName) (string, error) {
	if name.Name == "" {
		return "", fmt.Errorf("drop %s: %w", strings.ToLower(keyword), &adapters.MissingFieldError{Node: node, Field: "Name"})
	}
	return "DROP " + keyword + " " + s.p.QuoteObject(name), nil
}

func indent(sql string) string {
	lines := strings.Split(sql, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n")
}
