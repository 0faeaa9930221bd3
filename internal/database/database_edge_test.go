package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConnect_WithTimeout tests connection with very short timeout.
func TestConnect_WithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	// Try to connect to unreachable host with very short timeout
	pool, err := Connect(ctx, "postgres://localhost:59999/nonexistent?connect_timeout=1")
	require.Error(t, err)
	require.Nil(t, pool)
}

// TestConnect_WithMalformedURL tests connection with various malformed URLs.
func TestConnect_WithMalformedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{
			name: "missing protocol",
			url:  "localhost:5432/test",
		},
		{
			name: "invalid protocol",
			url:  "http://localhost:5432/test",
		},
		{
			name: "empty string",
			url:  "",
		},
		{
			name: "just protocol",
			url:  "postgres://",
		},
		{
			name: "invalid port",
			url:  "postgres://localhost:notaport/test",
		},
		{
			name: "special characters in password",
			url:  "postgres://user:p@ss@w0rd@localhost:5432/test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pool, err := Connect(ctx, tt.url)

			// All of these should fail
			require.Error(t, err)
			require.Nil(t, pool)
		})
	}
}

// TestCleanupTables_EmptyDatabase tests cleanup on empty database.
func TestCleanupTables_EmptyDatabase(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	err := RunMigrations(ctx, pool)
	require.NoError(t, err)

	// Clean empty tables
	CleanupTables(t, pool)

	// Verify tables are empty
	var count int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM expenses").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM splits").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

// TestCleanupTables_WithData tests cleanup with existing data.
func TestCleanupTables_WithData(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	err := RunMigrations(ctx, pool)
	require.NoError(t, err)

	// Insert test data
	seedExpense(t, pool)

	// Verify data exists
	var userCount, splitCount int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount)
	require.NoError(t, err)
	require.Positive(t, userCount)

	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM splits").Scan(&splitCount)
	require.NoError(t, err)
	require.Positive(t, splitCount)

	// Cleanup
	CleanupTables(t, pool)

	// Verify all data removed
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM expenses").Scan(&userCount)
	require.NoError(t, err)
	require.Equal(t, 0, userCount)

	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM splits").Scan(&splitCount)
	require.NoError(t, err)
	require.Equal(t, 0, splitCount)

	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount)
	require.NoError(t, err)
	require.Equal(t, 0, userCount)
}

// TestTestDB_SkipsWithoutEnvVar tests that TestDB skips when env var not set.
func TestTestDB_SkipsWithoutEnvVar(t *testing.T) {
	// Save original value
	original := os.Getenv("TEST_DATABASE_URL")

	// This test will actually always have the env var set in CI
	// but we document the expected behavior
	if original == "" {
		t.Skip("TEST_DATABASE_URL not set - this is expected behavior")
	}

	// Verify TestDB works when env var is set
	pool := TestDB(t)
	require.NotNil(t, pool)
}

// TestConnect_WithValidConnectionPooled tests that connection pooling works.
func TestConnect_WithValidConnectionPooled(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	// Create first connection
	pool1, err := Connect(ctx, dbURL)
	require.NoError(t, err)
	require.NotNil(t, pool1)
	defer pool1.Close()

	// Create second connection
	pool2, err := Connect(ctx, dbURL)
	require.NoError(t, err)
	require.NotNil(t, pool2)
	defer pool2.Close()

	// Both should be able to query
	var result1, result2 int
	err = pool1.QueryRow(ctx, "SELECT 1").Scan(&result1)
	require.NoError(t, err)
	require.Equal(t, 1, result1)

	err = pool2.QueryRow(ctx, "SELECT 1").Scan(&result2)
	require.NoError(t, err)
	require.Equal(t, 1, result2)
}
