package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ruslano69/mssqldialect/pkg/core/schema"
	"github.com/ruslano69/mssqldialect/pkg/snapshot"
)

// loadLive reads database over its own connection. A Loader switches the
// session's database, so connections are never shared between calls.
func (a *app) loadLive(ctx context.Context, database string) (*schema.DatabaseSchema, error) {
	if err := a.requireDSN(); err != nil {
		return nil, err
	}
	loader, conn, err := a.dialect.Loader(ctx, a.config.AdapterConfig())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	d, err := loader.GetDatabaseSchema(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", displayName(database), err)
	}
	return d, nil
}

func displayName(database string) string {
	if database == "" {
		return "current database"
	}
	return database
}

// resolve loads a schema named by a source argument:
//
//	db:<name>     live database (db: alone is the DSN's database)
//	cache:<key>   snapshot cache
//	<path>        YAML snapshot file, validated before use
func (a *app) resolve(ctx context.Context, source string) (*schema.DatabaseSchema, error) {
	switch {
	case strings.HasPrefix(source, "db:"):
		return a.loadLive(ctx, strings.TrimPrefix(source, "db:"))
	case strings.HasPrefix(source, "cache:"):
		cache, closeCache, err := a.cache()
		if err != nil {
			return nil, err
		}
		if cache == nil {
			return nil, fmt.Errorf("%s: cache is not enabled", source)
		}
		defer closeCache()
		return cache.Get(ctx, strings.TrimPrefix(source, "cache:"))
	default:
		d, err := schema.LoadFile(source)
		if err != nil {
			return nil, err
		}
		if err := schema.NewValidator().ValidateDatabase(d); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		return d, nil
	}
}

func newDumpCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "dump [database...]",
		Short: "Write YAML snapshots of live databases",
		Long: `Load each database from the system catalog and write <name>.yaml.
Without arguments the DSN's database is dumped. With the cache enabled every
snapshot is stored there too, and a change event is published when its
fingerprint differs from the cached one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{""}
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			cache, closeCache, err := a.cache()
			if err != nil {
				return err
			}
			defer closeCache()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(a.config.Database.Parallel)
			for _, database := range args {
				database := database
				g.Go(func() error {
					return a.dump(ctx, database, outDir, cache)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

func (a *app) dump(ctx context.Context, database, outDir string, cache *snapshot.Cache) error {
	d, err := a.loadLive(ctx, database)
	if err != nil {
		return err
	}
	path := filepath.Join(outDir, d.Name+".yaml")
	if err := schema.SaveFile(path, d); err != nil {
		return err
	}
	log.Info().
		Str("database", d.Name).
		Int("tables", len(d.Tables)).
		Int("views", len(d.Views)).
		Str("file", path).
		Msg("snapshot written")

	if cache == nil {
		return nil
	}
	changed, err := cache.Put(ctx, d.Name, d)
	if err != nil {
		return fmt.Errorf("cache %s: %w", d.Name, err)
	}
	if changed {
		log.Info().Str("database", d.Name).Msg("cached snapshot updated")
	}
	return nil
}
