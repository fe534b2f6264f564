package mssql

import (
	"context"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/types"
)

// Name is the registry name of the dialect.
const Name = "mssql"

// Dialect bundles the pure parts of the backend: type mapping, literal
// encoding, compilation and scripting. It holds no connection and is safe
// for concurrent use.
type Dialect struct {
	opts     Options
	compiler *Compiler
	scripter *Scripter
}

var _ adapters.Dialect = (*Dialect)(nil)

// New creates the dialect. opts.Policy defaults to MSSQLPolicy.
func New(opts Options) *Dialect {
	c := NewCompiler(opts.policy(""))
	return &Dialect{opts: opts, compiler: c, scripter: NewScripter(c)}
}

// Register adds the dialect to reg under Name.
func Register(reg *adapters.Registry, opts Options) {
	reg.Register(Name, func() adapters.Dialect { return New(opts) })
}

func (d *Dialect) Name() string { return Name }

func (d *Dialect) Policy() base.Policy { return d.compiler.Policy() }

func (d *Dialect) ToSQLSyntax(t types.DbType) (string, error) { return ToSQLSyntax(t) }

func (d *Dialect) ParseSQLSyntax(s string) (types.DbType, error) { return ParseSQLSyntax(s) }

func (d *Dialect) Literal(v any, hint *types.DbType) (string, error) { return Literal(v, hint) }

func (d *Dialect) Compile(stmt ast.Statement) (adapters.Compiled, error) {
	return d.compiler.Compile(stmt)
}

// Scripter renders migration scripts with the dialect's policy.
func (d *Dialect) Scripter() *Scripter { return d.scripter }

// Open connects with the dialect's options. An explicit Policy in the
// options wins over cfg.Schema.
func (d *Dialect) Open(ctx context.Context, cfg adapters.Config) (*Conn, error) {
	return Open(ctx, cfg, d.opts)
}

// Loader opens a connection and wraps it in a schema loader. Closing the
// returned Conn releases both.
func (d *Dialect) Loader(ctx context.Context, cfg adapters.Config) (*Loader, *Conn, error) {
	conn, err := d.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewLoader(conn, LoaderOptions{MigrationTable: cfg.MigrationTable, Logger: d.opts.Logger}), conn, nil
}
