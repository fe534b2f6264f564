package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/retry"
)

// Config is the mssqlschema configuration file.
type Config struct {
	Database DatabaseConfig    `yaml:"database"`
	Dialect  map[string]string `yaml:"dialect,omitempty"` // policy overrides, see base.Policy.ApplyOverrides
	Cache    CacheConfig       `yaml:"cache,omitempty"`
	Retry    retry.Config      `yaml:"retry,omitempty"`
	LogLevel string            `yaml:"log_level,omitempty"`
}

// DatabaseConfig contains connection settings
type DatabaseConfig struct {
	DSN               string        `yaml:"dsn"`
	DefaultSchema     string        `yaml:"default_schema,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	CompatibilityMode string        `yaml:"compatibility_mode,omitempty"` // 2012, 2016, 2019, 2022, auto
	Strict            bool          `yaml:"strict,omitempty"`
	MigrationTable    string        `yaml:"migration_table,omitempty"`
	Parallel          int           `yaml:"parallel,omitempty"` // concurrent connections for dump
}

// CacheConfig contains the Redis snapshot cache settings
type CacheConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Address          string        `yaml:"address,omitempty"`
	Password         string        `yaml:"password,omitempty"`
	DB               int           `yaml:"db,omitempty"`
	TTL              time.Duration `yaml:"ttl,omitempty"`
	CompressionLevel int           `yaml:"compression_level,omitempty"`
}

// DefaultConfig returns the settings used for keys a file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DefaultSchema:     "dbo",
			Timeout:           30 * time.Second,
			CompatibilityMode: "auto",
			MigrationTable:    "__migrations",
			Parallel:          4,
		},
		Cache: CacheConfig{
			Address:          "localhost:6379",
			TTL:              24 * time.Hour,
			CompressionLevel: 3,
		},
		Retry: retry.Config{
			Enabled:         true,
			MaxAttempts:     3,
			InitialDelay:    time.Second,
			MaxDelay:        10 * time.Second,
			BackoffStrategy: retry.BackoffExponential,
			Jitter:          0.1,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads filename over the defaults. An empty filename yields
// the defaults; MSSQL_DSN fills in a missing DSN.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if config.Database.DSN == "" {
		config.Database.DSN = os.Getenv("MSSQL_DSN")
	}
	return config, nil
}

// Validate checks everything that does not need a server.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.CompatibilityMode {
	case "", "auto", "2012", "2016", "2019", "2022":
	default:
		errs = append(errs, fmt.Errorf("database.compatibility_mode: invalid value %q", c.Database.CompatibilityMode))
	}
	if c.Database.Timeout < 0 {
		errs = append(errs, errors.New("database.timeout must be >= 0"))
	}
	if c.Database.Parallel < 1 {
		errs = append(errs, fmt.Errorf("database.parallel must be >= 1, got %d", c.Database.Parallel))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("dialect: %w", err))
	}
	if c.Cache.Enabled {
		if c.Cache.Address == "" {
			errs = append(errs, errors.New("cache.address is required when the cache is enabled"))
		}
		if l := c.Cache.CompressionLevel; l < 1 || l > 22 {
			errs = append(errs, fmt.Errorf("cache.compression_level must be 1..22, got %d", l))
		}
	}
	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Policy is the T-SQL policy with the dialect overrides applied. An
// explicit default_schema override wins over database.default_schema.
func (c *Config) Policy() (base.Policy, error) {
	p := base.MSSQLPolicy()
	if c.Database.DefaultSchema != "" {
		p.DefaultSchema = c.Database.DefaultSchema
	}
	if err := p.ApplyOverrides(c.Dialect); err != nil {
		return base.Policy{}, err
	}
	return p, nil
}

// AdapterConfig is the connection configuration for one database. An
// empty database keeps the DSN's.
func (c *Config) AdapterConfig() adapters.Config {
	return adapters.Config{
		Type:              "mssql",
		DSN:               c.Database.DSN,
		Schema:            c.Database.DefaultSchema,
		Timeout:           c.Database.Timeout,
		CompatibilityMode: c.Database.CompatibilityMode,
		MigrationTable:    c.Database.MigrationTable,
	}
}
