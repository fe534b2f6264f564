// Command mssqlschema dumps, scripts, diffs and applies SQL Server schemas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ruslano69/mssqldialect/pkg/adapters/mssql"
	"github.com/ruslano69/mssqldialect/pkg/snapshot"
)

// app is the state shared by subcommands once the config is loaded.
type app struct {
	config  *Config
	dialect *mssql.Dialect
}

func (a *app) options() mssql.Options {
	policy, _ := a.config.Policy()
	logger := log.Logger
	return mssql.Options{
		Policy: &policy,
		Retry:  a.config.Retry,
		Logger: &logger,
		Strict: a.config.Database.Strict,
	}
}

// cache opens the snapshot cache, or returns nil when it is disabled.
func (a *app) cache() (*snapshot.Cache, func(), error) {
	cfg := a.config.Cache
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger := log.Logger
	c, err := snapshot.NewCache(rdb, snapshot.CacheOptions{
		TTL:    cfg.TTL,
		Level:  cfg.CompressionLevel,
		Logger: &logger,
	})
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	return c, func() {
		c.Close()
		rdb.Close()
	}, nil
}

func (a *app) requireDSN() error {
	if a.config.Database.DSN == "" {
		return fmt.Errorf("database.dsn is not set (config file or MSSQL_DSN)")
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		noColor    bool
	)
	a := &app{}

	root := &cobra.Command{
		Use:   "mssqlschema",
		Short: "Dump, script, diff and apply SQL Server schemas",
		Long: `mssqlschema reads SQL Server schemas into YAML snapshots and turns the
difference between two snapshots into a T-SQL migration script.

Examples:

  mssqlschema dump Shop Archive -o snapshots/
  mssqlschema script snapshots/Shop.yaml
  mssqlschema diff snapshots/Shop.yaml db:Shop
  mssqlschema apply migration.sql --database Shop
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			setupLogging(config.LogLevel, verbose)
			if noColor {
				color.NoColor = true
			}
			a.config = config
			a.dialect = mssql.New(a.options())
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newDumpCmd(a),
		newScriptCmd(a),
		newDiffCmd(a),
		newApplyCmd(a),
	)
	return root
}

func setupLogging(level string, verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	log.Logger = log.Logger.Level(lvl)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
