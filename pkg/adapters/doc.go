/*
Package adapters defines the contract between a host and one SQL dialect.

# Layers

	┌─────────────────────────────────────────┐
	│  Host (CLI, migration runner, ...)      │
	│  - ast.Statement                        │
	│  - schema.DatabaseSchema                │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Dialect interface                      │  ← pkg/adapters/adapter.go
	│    TypeMapper: ToSQLSyntax, ...         │
	│    Compiler:   Compile(stmt)            │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  base.Policy (quoting, prefixes, GO)    │  ← pkg/adapters/base
	└─────────────────┬───────────────────────┘
	                  │
	            ┌─────▼─────┐
	            │  mssql    │  types, literals, compiler,
	            │           │  loader, scripter, diff
	            └───────────┘

A dialect compiles statements into a Compiled value: an ordered list of
batches plus the parameters they reference. Compiled.SQL joins the
batches with the policy's batch separator, so a statement that needs
several server round trips (SET IDENTITY_INSERT around an INSERT, for
example) still prints as one script.

# Registry

Dialects are looked up by name. There is no global registry; hosts build
their own and register what they link:

	reg := adapters.NewRegistry()
	mssql.Register(reg, mssql.Options{})

	d, err := reg.Create("mssql")
	if err != nil {
	    return err
	}
	out, err := d.Compile(&ast.Select{From: []ast.Source{ast.From(ast.Name("Items"), "")}})

# Errors

Failures carry typed errors so callers can branch with errors.As:

  - TypeMappingError: a type has no spelling in the dialect
  - UnsupportedNodeError: the compiler met a node it cannot render
  - MissingFieldError: a required field of a node is empty
  - NotFoundError: an object is absent from the database
  - QueryExecutionError: the driver rejected a statement

Rollback after Commit or after a server-side abort is not an error;
Commit on a finished transaction returns ErrTxFinished.
*/
package adapters
