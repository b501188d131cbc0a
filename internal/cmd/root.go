// Package cmd implements the sweeper command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/harrowdale/sweeper/internal/config"
	"github.com/harrowdale/sweeper/internal/db"
	"github.com/harrowdale/sweeper/internal/logging"
)

var (
	rootConfigPath string
	rootHost       string
	rootPort       int
	rootUser       string
	rootPassword   string
	rootDatabase   string
	rootLogFile    string
	rootVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Retention enforcement for the tenancy database",
	Long: `Sweeper enforces data retention on the tenancy database in two phases.

First, "identify" computes a safe primary-key cutoff per entity class and
writes a JSON cutoff report. Every cutoff is verified against the retention
predicate before the report is marked SAFE.

Second, "delete" consumes a cutoff report and removes eligible rows in
dependency order, in small audited batches. An interrupted run resumes
from the audit trail; --dry-run previews the work without deleting.

Connection settings come from the config file, overridden by SWEEPER_DB_*
environment variables, overridden by flags.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootConfigPath, "config", "", "Path to TOML config file")
	pf.StringVar(&rootHost, "host", "", "Database host")
	pf.IntVar(&rootPort, "port", 0, "Database port")
	pf.StringVar(&rootUser, "user", "", "Database user")
	pf.StringVar(&rootPassword, "password", "", "Database password")
	pf.StringVar(&rootDatabase, "database", "", "Database name")
	pf.StringVar(&rootLogFile, "log-file", "", "Log file path (empty keeps the configured path)")
	pf.BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves configuration: file, then environment, then flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		return nil, err
	}
	if rootHost != "" {
		cfg.DB.Host = rootHost
	}
	if rootPort > 0 {
		cfg.DB.Port = rootPort
	}
	if rootUser != "" {
		cfg.DB.User = rootUser
	}
	if rootPassword != "" {
		cfg.DB.Password = rootPassword
	}
	if rootDatabase != "" {
		cfg.DB.Database = rootDatabase
	}
	if rootLogFile != "" {
		cfg.Logging.File = rootLogFile
	}
	if cfg.DB.Database == "" {
		return nil, fmt.Errorf("no database selected; pass --database or set SWEEPER_DB_NAME")
	}
	return cfg, nil
}

// setup loads configuration, builds the logger, and opens the database.
// Callers own closing the returned connection.
func setup(ctx context.Context) (*config.Config, *logrus.Logger, *sqlx.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log := logging.New(cfg.Logging, rootVerbose)

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return nil, nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"host":     cfg.DB.Host,
		"database": cfg.DB.Database,
	}).Info("connected")
	return cfg, log, conn, nil
}
