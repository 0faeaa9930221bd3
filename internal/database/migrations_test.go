package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	err := RunMigrations(ctx, pool)
	require.NoError(t, err)

	for _, table := range ledgerTables {
		var tableExists bool
		err = pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&tableExists)
		require.NoError(t, err)
		require.True(t, tableExists, "table %s should exist", table)
	}
}

// TestRunMigrations_Idempotent tests that migrations can be run multiple times safely.
func TestRunMigrations_Idempotent(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, RunMigrations(ctx, pool))
	}

	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM splits").Scan(&count)
	require.NoError(t, err)
}

func TestRunMigrations_InsideTx(t *testing.T) {
	db := TestTx(t)
	require.NoError(t, RunMigrations(context.Background(), db))
}
