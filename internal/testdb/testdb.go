//go:build integration

// Package testdb provides a migrated PostgreSQL database for integration
// tests and per-test transactions that are always rolled back.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vaelis-ai/vaelis-api/internal/platform/postgres"
)

// TestTimeout bounds database setup in tests.
const TestTimeout = 10 * time.Second

// urlEnvVars are checked in order for the test database URL.
var urlEnvVars = []string{"VAELIS_TEST_DATABASE_URL", "DATABASE_URL"}

var migrateOnce sync.Once

// GetTestDatabaseURL returns the first non-empty test database URL, or "".
func GetTestDatabaseURL() string {
	for _, name := range urlEnvVars {
		if url := os.Getenv(name); url != "" {
			return url
		}
	}
	return ""
}

// SkipIfNoDatabase skips t when no test database is configured.
func SkipIfNoDatabase(t *testing.T) {
	t.Helper()
	if GetTestDatabaseURL() == "" {
		t.Skip("VAELIS_TEST_DATABASE_URL not set, skipping integration test")
	}
}

// Open connects to the test database, applies migrations once per test
// binary and closes the pool when t finishes.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	SkipIfNoDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, GetTestDatabaseURL())
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(ctx, db, slog.Default())
	})
	require.NoError(t, migrateErr, "failed to migrate test database")

	return db
}

// WithTx runs fn in a transaction that is rolled back afterwards, so tests
// can write freely without affecting each other.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin test transaction")

	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", rbErr)
		}
	}()

	fn(t, tx)
}
