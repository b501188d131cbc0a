// Package db opens connections to the target MySQL database.
package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/harrowdale/sweeper/internal/config"
)

const (
	connectTimeout = 10 * time.Second

	// Generous read/write timeouts: anti-join DELETEs on large tables can
	// legitimately run for minutes on a loaded server.
	readTimeout  = 5 * time.Minute
	writeTimeout = 5 * time.Minute
)

// Open connects to the configured database and verifies the connection with
// a ping. Connection failure is fatal to the caller; there is no retry —
// the operator must fix credentials or the network.
func Open(ctx context.Context, cfg config.DB) (*sqlx.DB, error) {
	dsn := DSN(cfg)

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	// One statement in flight at a time, strict commit-after-batch: a single
	// connection is all the tool ever uses.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s@%s:%d/%s: %w", cfg.User, cfg.Host, cfg.Port, cfg.Database, err)
	}

	return db, nil
}

// DSN builds the driver connection string. charset=utf8 keeps compatibility
// with older MySQL servers that predate utf8mb4.
func DSN(cfg config.DB) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8&timeout=%s&readTimeout=%s&writeTimeout=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		connectTimeout, readTimeout, writeTimeout)
}
