package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ruslano69/mssqldialect/pkg/adapters/mssql"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

// separatorLine matches a GO line. The client tools accept any case and
// surrounding blanks.
var separatorLine = regexp.MustCompile(`(?im)^[ \t]*GO[ \t]*$`)

// splitBatches cuts a script at GO lines, dropping blank batches.
func splitBatches(script string) []string {
	script = strings.ReplaceAll(script, "\r\n", "\n")
	var out []string
	for _, b := range separatorLine.Split(script, -1) {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func newApplyCmd(a *app) *cobra.Command {
	var (
		database string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "apply <script.sql|->",
		Short: "Run a script batch by batch in one transaction",
		Long: `Run each GO-separated batch of the script inside a single transaction.
The first failing batch rolls everything back. "-" reads the script from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			batches := splitBatches(script)
			if len(batches) == 0 {
				return fmt.Errorf("%s: no statements", args[0])
			}
			if dryRun {
				for i, b := range batches {
					color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "-- batch %d\n", i+1)
					fmt.Fprintln(cmd.OutOrStdout(), b)
				}
				return nil
			}
			if err := a.requireDSN(); err != nil {
				return err
			}

			ctx := cmd.Context()
			conn, err := a.dialect.Open(ctx, a.config.AdapterConfig())
			if err != nil {
				return err
			}
			defer conn.Close()
			if database != "" {
				if err := conn.ChangeDatabase(ctx, database); err != nil {
					return err
				}
			}
			if err := applyBatches(ctx, conn, batches); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "applied %d batches\n", len(batches))
			return nil
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "database to apply to (default: the DSN's)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the batches without running them")
	return cmd
}

func readScript(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

// applyBatches runs batches in one transaction and rolls back on the
// first failure.
func applyBatches(ctx context.Context, conn *mssql.Conn, batches []string) (err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error().Err(rbErr).Msg("rollback failed")
		}
	}()

	for i, b := range batches {
		res, err := tx.Exec(ctx, ast.RawSQL(b))
		if err != nil {
			return fmt.Errorf("batch %d: %w", i+1, err)
		}
		log.Debug().Int("batch", i+1).Int64("rows", res.RowsAffected).Msg("batch applied")
	}
	return tx.Commit(ctx)
}
