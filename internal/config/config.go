// Package config loads sweeper configuration from a TOML file with
// environment-variable overrides for connection credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// defaultBatchDelay throttles load on a shared database between batches.
	defaultBatchDelay = 100 * time.Millisecond

	// defaultChunkSize bounds IN-clause length when deleting by owner ID list.
	defaultChunkSize = 1000

	defaultBatchSize = 1000
)

// DB holds connection parameters for the target database.
type DB struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// Retention holds the trailing windows that define row freshness.
// Rows strictly older than a window are eligible for deletion.
type Retention struct {
	// ReadingYears is the retention window for metering readings.
	ReadingYears int `toml:"reading_years"`

	// AccountYears is the retention window for contacts and communities.
	AccountYears int `toml:"account_years"`
}

// Deletion holds batch-deletion tuning.
type Deletion struct {
	// BatchSizes maps table names to batch widths. High-volume polymorphic
	// tables get smaller batches than independent tables.
	BatchSizes map[string]int `toml:"batch_sizes"`

	// DefaultBatchSize applies to tables absent from BatchSizes.
	DefaultBatchSize int `toml:"default_batch_size"`

	// DelayStr is the inter-batch sleep, as a duration string (e.g., "100ms").
	DelayStr string `toml:"delay"`

	// ChunkSize caps the number of owner IDs embedded in one IN clause.
	ChunkSize int `toml:"chunk_size"`

	// LockFile guards against two deleter processes sharing one audit table.
	LockFile string `toml:"lock_file"`
}

// Logging holds log sink settings.
type Logging struct {
	// File is the rotating log file path. Empty disables the file sink.
	File string `toml:"file"`

	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
}

// Config is the root configuration.
type Config struct {
	DB        DB        `toml:"db"`
	Retention Retention `toml:"retention"`
	Deletion  Deletion  `toml:"deletion"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration. Batch sizes reflect observed
// per-table volume: address and phone carry tens of millions of polymorphic
// rows, readings are independent and cheap to delete in bulk.
func Default() *Config {
	return &Config{
		DB: DB{
			Host: "localhost",
			Port: 3306,
		},
		Retention: Retention{
			ReadingYears: 2,
			AccountYears: 7,
		},
		Deletion: Deletion{
			BatchSizes: map[string]int{
				"address": 500,
				"phone":   1000,
				"email":   1000,
				"note":    2000,
				"contact": 100,
				"reading": 10000,
			},
			DefaultBatchSize: defaultBatchSize,
			DelayStr:         defaultBatchDelay.String(),
			ChunkSize:        defaultChunkSize,
			LockFile:         "sweeper.lock",
		},
		Logging: Logging{
			File:       "sweeper.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load reads a TOML config file over the defaults and applies environment
// overrides. An empty path skips the file and returns defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SWEEPER_DB_* environment variables over the
// file values. The password override is the common path: it keeps credentials
// out of config files and shell history.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWEEPER_DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("SWEEPER_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.DB.Port = p
		}
	}
	if v := os.Getenv("SWEEPER_DB_USER"); v != "" {
		cfg.DB.User = v
	}
	if v := os.Getenv("SWEEPER_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("SWEEPER_DB_NAME"); v != "" {
		cfg.DB.Database = v
	}
}

// Validate checks the invariants the rest of the program assumes.
func (c *Config) Validate() error {
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return fmt.Errorf("invalid db port %d", c.DB.Port)
	}
	if c.Retention.ReadingYears <= 0 {
		return fmt.Errorf("reading retention must be positive, got %d", c.Retention.ReadingYears)
	}
	if c.Retention.AccountYears <= 0 {
		return fmt.Errorf("account retention must be positive, got %d", c.Retention.AccountYears)
	}
	if c.Deletion.DefaultBatchSize <= 0 {
		return fmt.Errorf("default batch size must be positive, got %d", c.Deletion.DefaultBatchSize)
	}
	for table, size := range c.Deletion.BatchSizes {
		if size <= 0 {
			return fmt.Errorf("batch size for %s must be positive, got %d", table, size)
		}
	}
	if c.Deletion.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Deletion.ChunkSize)
	}
	return nil
}

// BatchDelay returns the configured inter-batch delay, or the default (100ms)
// when the string is empty or unparseable.
func (c *Config) BatchDelay() time.Duration {
	if c.Deletion.DelayStr != "" {
		if d, err := time.ParseDuration(c.Deletion.DelayStr); err == nil && d >= 0 {
			return d
		}
	}
	return defaultBatchDelay
}

// BatchSize returns the batch width for a table, falling back to the default.
func (c *Config) BatchSize(table string) int {
	if size, ok := c.Deletion.BatchSizes[table]; ok && size > 0 {
		return size
	}
	return c.Deletion.DefaultBatchSize
}
