package database

import (
	"context"
	"errors"
	"testing"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("traces queries", func(t *testing.T) {
		cfg, err := ParseConfig("postgres://ledger@localhost:5432/ledger")
		require.NoError(t, err)
		require.IsType(t, &otelpgx.Tracer{}, cfg.ConnConfig.Tracer)
	})

	t.Run("names the application", func(t *testing.T) {
		cfg, err := ParseConfig("postgres://ledger@localhost:5432/ledger")
		require.NoError(t, err)
		require.Equal(t, ApplicationName, cfg.ConnConfig.RuntimeParams["application_name"])
	})

	t.Run("keeps an application name from the url", func(t *testing.T) {
		cfg, err := ParseConfig("postgres://ledger@localhost:5432/ledger?application_name=nightly-report")
		require.NoError(t, err)
		require.Equal(t, "nightly-report", cfg.ConnConfig.RuntimeParams["application_name"])
	})

	t.Run("rejects a malformed url", func(t *testing.T) {
		cfg, err := ParseConfig("postgres://localhost:notaport/ledger")
		require.Error(t, err)
		require.Nil(t, cfg)
	})
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("fails with invalid connection string", func(t *testing.T) {
		pool, err := Connect(ctx, "invalid://connection")
		require.Error(t, err)
		require.Nil(t, pool)
	})

	t.Run("fails with unreachable host", func(t *testing.T) {
		pool, err := Connect(ctx, "postgres://localhost:59999/nonexistent?connect_timeout=1")
		require.ErrorContains(t, err, "unable to ping database")
		require.Nil(t, pool)
	})
}

// queryOnly hides Begin from the wrapped handle.
type queryOnly struct {
	PGXDB
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("handle without transactions", func(t *testing.T) {
		called := false
		err := WithTx(ctx, queryOnly{}, func(pgx.Tx) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, ErrNoTransactions)
		require.False(t, called)
	})

	t.Run("commits on success", func(t *testing.T) {
		db := TestTx(t)

		err := WithTx(ctx, db, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `INSERT INTO users (id, name, email) VALUES ($1, 'Alice', 'alice@withtx.test')`, alice)
			return err
		})
		require.NoError(t, err)

		var n int
		require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM users WHERE id = $1`, alice).Scan(&n))
		require.Equal(t, 1, n)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := TestTx(t)
		failed := errors.New("split did not balance")

		err := WithTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `INSERT INTO users (id, name, email) VALUES ($1, 'Bob', 'bob@withtx.test')`, bob); err != nil {
				return err
			}
			return failed
		})
		require.ErrorIs(t, err, failed)

		var n int
		require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM users WHERE id = $1`, bob).Scan(&n))
		require.Zero(t, n)
	})
}

func TestLockKey(t *testing.T) {
	db := TestTx(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx pgx.Tx) error {
		if err := LockKey(ctx, tx, "group:trip"); err != nil {
			return err
		}
		// Advisory locks are reentrant within a session.
		return LockKey(ctx, tx, "group:trip")
	})
	require.NoError(t, err)

	t.Run("reports a failed lock", func(t *testing.T) {
		tx := TestTx(t)
		_, err := tx.Exec(ctx, `SELECT 1/0`)
		require.Error(t, err)

		err = LockKey(ctx, tx, "group:trip")
		require.ErrorContains(t, err, "failed to lock group:trip")
	})
}
