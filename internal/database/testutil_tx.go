package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerTables lists the schema's tables, dependents first.
var ledgerTables = []string{"expense_tags", "tags", "splits", "expenses", "members", "groups", "users"}

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testPoolErr  error
)

// TestPool returns the pool shared by every integration test of the process.
// The first call migrates the database and checks the ledger tables exist.
// Skips the test if TEST_DATABASE_URL is not set.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	testPoolOnce.Do(func() {
		ctx := context.Background()
		testPool, testPoolErr = Connect(ctx, dbURL)
		if testPoolErr != nil {
			return
		}
		if testPoolErr = RunMigrations(ctx, testPool); testPoolErr != nil {
			return
		}
		testPoolErr = checkSchema(ctx, testPool)
	})

	if testPoolErr != nil {
		t.Fatalf("failed to setup test database: %v", testPoolErr)
	}

	return testPool
}

// TestTx returns a transaction that is rolled back when the test ends, so
// nothing a test writes is seen by another. Stores built on it run their own
// transactions as savepoints.
//
//	store := postgres.New(database.TestTx(t))
func TestTx(t *testing.T) PGXDB {
	t.Helper()

	pool := TestPool(t)
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return tx
}

// checkSchema reports the first ledger table missing from db's search path.
func checkSchema(ctx context.Context, db PGXDB) error {
	for _, table := range ledgerTables {
		var exists bool
		if err := db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
			return fmt.Errorf("failed to look up table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("table %s is missing", table)
		}
	}
	return nil
}
