// Package base holds the dialect policy shared by SQL renderers.
//
// A Policy is plain data: quote characters, parameter and variable
// prefixes, alias keywords, the batch separator, the default schema and
// the pagination style. Renderers consult it instead of overriding
// methods, so a variant dialect is a Policy value with a few fields
// changed (see Policy.ApplyOverrides).
//
// The same Policy quotes and parses multi-part object names:
//
//	p := base.MSSQLPolicy()
//	p.QuoteObject(ast.Name("Items", "dbo"))  // [dbo].[Items]
//	p.ParseObjectName("[dbo].[a.b]")         // {Name: "a.b", Schema: "dbo"}
package base
