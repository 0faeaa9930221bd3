package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXDB is what repositories query through: the pool, a ledger transaction,
// or a savepoint inside a test transaction.
type PGXDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner can start a transaction. On a pgx.Tx it starts a savepoint.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrNoTransactions is returned by WithTx for a handle that cannot begin transactions.
var ErrNoTransactions = errors.New("database handle cannot begin transactions")

// WithTx runs fn in a transaction on db, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db PGXDB, fn func(tx pgx.Tx) error) error {
	beginner, ok := db.(TxBeginner)
	if !ok {
		return ErrNoTransactions
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockKey blocks until it holds the advisory lock for key. The lock is
// released when the surrounding transaction ends.
func LockKey(ctx context.Context, tx PGXDB, key string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return nil
}

var (
	_ PGXDB      = (*pgxpool.Pool)(nil)
	_ PGXDB      = (pgx.Tx)(nil)
	_ TxBeginner = (*pgxpool.Pool)(nil)
	_ TxBeginner = (pgx.Tx)(nil)
)
