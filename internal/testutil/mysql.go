// Package testutil provides a shared MySQL container for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
	container     *tcmysql.MySQLContainer
)

// RequireMySQL returns a connection to a shared MySQL container, starting it
// on first use. Tests share one container per binary; each test should use
// its own database or clean up its tables.
func RequireMySQL(t *testing.T) *sqlx.DB {
	t.Helper()

	if os.Getenv("SWEEPER_TEST_SKIP_DOCKER") != "" {
		t.Skip("SWEEPER_TEST_SKIP_DOCKER set; skipping container-backed test")
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := tcmysql.Run(ctx, "mysql:8.0",
			tcmysql.WithDatabase("sweeper_test"),
			tcmysql.WithUsername("root"),
			tcmysql.WithPassword("test"),
		)
		if err != nil {
			containerErr = fmt.Errorf("starting mysql container: %w", err)
			return
		}
		container = c
		dsn, err := c.ConnectionString(ctx, "parseTime=true", "multiStatements=true")
		if err != nil {
			containerErr = fmt.Errorf("resolving container DSN: %w", err)
			return
		}
		containerDSN = dsn
	})
	if containerErr != nil {
		t.Fatalf("mysql container unavailable: %v", containerErr)
	}

	db, err := sqlx.Connect("mysql", containerDSN)
	if err != nil {
		t.Fatalf("connecting to test mysql: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TerminateMySQL stops the shared container. Call from TestMain when the
// package owns the container lifetime; otherwise Ryuk reaps it.
func TerminateMySQL() {
	if container != nil {
		_ = testcontainers.TerminateContainer(container)
	}
}

// MustExec runs each statement and fails the test on error. Used for schema
// setup and fixture rows.
func MustExec(t *testing.T, db *sqlx.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}
