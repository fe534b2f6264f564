package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ruslano69/mssqldialect/pkg/adapters/mssql"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
	"github.com/ruslano69/mssqldialect/pkg/core/schema"
)

func newScriptCmd(a *app) *cobra.Command {
	var tables []string

	cmd := &cobra.Command{
		Use:   "script <source>",
		Short: "Render CREATE scripts for the tables of a schema",
		Long: `Render CREATE TABLE scripts (with indexes, check constraints and comments)
for every table of source, followed by the foreign keys. source is a snapshot
file, db:<name> or cache:<key>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeCreateScript(cmd.OutOrStdout(), a.dialect, d, tables)
		},
	}
	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "only these tables (schema.name or name)")
	return cmd
}

// writeCreateScript renders the selected tables, then their foreign keys
// so that every referenced table exists first.
func writeCreateScript(w io.Writer, dialect *mssql.Dialect, d *schema.DatabaseSchema, only []string) error {
	s := dialect.Scripter()
	selected, err := selectTables(d, only)
	if err != nil {
		return err
	}

	var batches []string
	for _, t := range selected {
		sql, err := s.CreateTable(t)
		if err != nil {
			return err
		}
		batches = append(batches, sql)
	}
	for _, t := range selected {
		for _, fk := range t.ForeignKeys {
			sql, err := s.AddForeignKey(ast.Name(t.Name, t.Schema), fk)
			if err != nil {
				return err
			}
			batches = append(batches, sql)
		}
	}
	if len(batches) == 0 {
		return nil
	}
	_, err = fmt.Fprintln(w, strings.Join(batches, dialect.Policy().BatchSeparator))
	return err
}

func selectTables(d *schema.DatabaseSchema, only []string) ([]schema.TableSchema, error) {
	if len(only) == 0 {
		return d.Tables, nil
	}
	out := make([]schema.TableSchema, 0, len(only))
	for _, name := range only {
		schemaName, table, ok := strings.Cut(name, ".")
		if !ok {
			schemaName, table = "", name
		}
		t := d.Table(schemaName, table)
		if t == nil {
			return nil, fmt.Errorf("table %s not found in %s", name, d.Name)
		}
		out = append(out, *t)
	}
	return out, nil
}
