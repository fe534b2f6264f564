// Package mssql is the Transact-SQL backend: it maps logical types to
// SQL Server types, encodes literals, compiles statement trees, reads
// schemas from the system catalog and scripts migrations between them.
//
// The pure half needs no server:
//
//	d := mssql.New(mssql.Options{})
//	out, err := d.Compile(&ast.DropTable{Name: ast.Name("Items", "dbo")})
//	// out.SQL() == "DROP TABLE [dbo].[Items]"
//
//	m, err := d.Scripter().Diff(before, after)
//	fmt.Println(m.Up)
//
// Statements that the server requires in separate batches (identity
// inserts, CREATE VIEW, CREATE SCHEMA) come back as several batches. Conn
// sends them one by one; scripts join them with the policy's batch
// separator, "\nGO\n" by default.
//
// The live half works on one session:
//
//	conn, err := d.Open(ctx, adapters.Config{DSN: dsn, CompatibilityMode: "2016"})
//	defer conn.Close()
//	db, err := mssql.NewLoader(conn, mssql.LoaderOptions{}).GetDatabaseSchema(ctx, "Shop")
//
// Compatibility modes "2012", "2016", "2019", "2022" cap the feature set
// below what the server offers; "auto" (or empty) uses the server's own
// level. With Options.Strict a mode above the server's is an error.
//
// A Conn and the Loader over it hold session state (the current database)
// and must not be shared between goroutines.
package mssql
