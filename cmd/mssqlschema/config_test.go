package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MSSQL_DSN", "sqlserver://sa@localhost?database=Shop")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Database.DSN != "sqlserver://sa@localhost?database=Shop" {
		t.Errorf("DSN = %q, want it from MSSQL_DSN", config.Database.DSN)
	}
	if config.Database.DefaultSchema != "dbo" || config.Database.Parallel != 4 {
		t.Errorf("Database = %+v, want defaults", config.Database)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: sqlserver://sa@db:1433
  default_schema: sales
  timeout: 5s
  compatibility_mode: "2016"
dialect:
  batch_separator: "\nGO\n"
cache:
  enabled: true
  address: redis:6379
  ttl: 1h
retry:
  enabled: false
log_level: debug
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if config.Database.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", config.Database.Timeout)
	}
	if config.Cache.TTL != time.Hour || config.Cache.CompressionLevel != 3 {
		t.Errorf("Cache = %+v, want ttl 1h and the default level", config.Cache)
	}
	// Keys the file leaves out keep their defaults.
	if config.Database.MigrationTable != "__migrations" {
		t.Errorf("MigrationTable = %q, want default", config.Database.MigrationTable)
	}

	p, err := config.Policy()
	if err != nil {
		t.Fatalf("Policy() error = %v", err)
	}
	if p.DefaultSchema != "sales" {
		t.Errorf("DefaultSchema = %q, want %q", p.DefaultSchema, "sales")
	}

	ac := config.AdapterConfig()
	if ac.Type != "mssql" || ac.CompatibilityMode != "2016" || ac.Schema != "sales" {
		t.Errorf("AdapterConfig() = %+v", ac)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"compatibility", func(c *Config) { c.Database.CompatibilityMode = "2008" }, "compatibility_mode"},
		{"parallel", func(c *Config) { c.Database.Parallel = 0 }, "parallel"},
		{"dialect key", func(c *Config) { c.Dialect = map[string]string{"quote_lft": "["} }, "unknown dialect option"},
		{"cache address", func(c *Config) { c.Cache.Enabled = true; c.Cache.Address = "" }, "cache.address"},
		{"cache level", func(c *Config) { c.Cache.Enabled = true; c.Cache.CompressionLevel = 30 }, "compression_level"},
		{"retry", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "max_delay"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadConfig() error = nil for a missing file")
	}
}
