package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ruslano69/mssqldialect/pkg/adapters/mssql"
)

func newDiffCmd(a *app) *cobra.Command {
	var (
		down    bool
		upFile  string
		dnFile  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Print the migration between two schemas",
		Long: `Compare two schemas and print the T-SQL that turns <from> into <to>.
Each argument is a snapshot file, db:<name> or cache:<key>.

Examples:
  mssqlschema diff old.yaml new.yaml
  mssqlschema diff db:Shop snapshots/Shop.yaml --down
  mssqlschema diff cache:Shop db:Shop --up-file up.sql --down-file down.sql
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			from, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			to, err := a.resolve(ctx, args[1])
			if err != nil {
				return err
			}
			m, err := a.dialect.Scripter().Diff(from, to)
			if err != nil {
				return err
			}

			if summary || m.Empty() {
				printSummary(cmd.ErrOrStderr(), m)
			}
			if m.Empty() {
				return nil
			}
			if upFile != "" {
				if err := os.WriteFile(upFile, []byte(m.Up+"\n"), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", upFile, err)
				}
			}
			if dnFile != "" {
				if err := os.WriteFile(dnFile, []byte(m.Down+"\n"), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", dnFile, err)
				}
			}
			if upFile != "" || dnFile != "" {
				return nil
			}
			script := m.Up
			if down {
				script = m.Down
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), script)
			return err
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "print the reverting script instead")
	cmd.Flags().StringVar(&upFile, "up-file", "", "write the up script to a file")
	cmd.Flags().StringVar(&dnFile, "down-file", "", "write the down script to a file")
	cmd.Flags().BoolVarP(&summary, "summary", "s", true, "print a change summary to stderr")
	return cmd
}

func printSummary(w io.Writer, m *mssql.Migration) {
	if m.Empty() {
		color.New(color.FgGreen).Fprintln(w, "no differences")
		return
	}

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	counts := map[mssql.ChangeOp]int{}
	for _, c := range m.Changes {
		counts[c.Op]++
		switch c.Op {
		case mssql.OpCreate:
			green.Fprintf(w, "  + %s %s\n", c.Object, c.Name)
		case mssql.OpDrop:
			red.Fprintf(w, "  - %s %s\n", c.Object, c.Name)
		default:
			yellow.Fprintf(w, "  ~ %s %s\n", c.Object, c.Name)
		}
	}
	fmt.Fprintf(w, "%d to create, %d to alter, %d to drop\n",
		counts[mssql.OpCreate], counts[mssql.OpAlter], counts[mssql.OpDrop])
}
