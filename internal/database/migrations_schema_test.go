package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

const (
	alice = "6f1c4f0a-8d5e-4b5a-9a57-0d0d1c7c1a01"
	bob   = "6f1c4f0a-8d5e-4b5a-9a57-0d0d1c7c1a02"
	grp   = "6f1c4f0a-8d5e-4b5a-9a57-0d0d1c7c1a10"
	exp   = "6f1c4f0a-8d5e-4b5a-9a57-0d0d1c7c1a20"
)

func seedExpense(t *testing.T, db PGXDB) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `INSERT INTO users (id, name, email) VALUES ($1, 'Alice', 'alice@migrations.test'), ($2, 'Bob', 'bob@migrations.test')`, alice, bob)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO groups (id, name, author_id) VALUES ($1, 'Trip', $2)`, grp, alice)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO expenses (id, title, amount, author_id, group_id) VALUES ($1, 'Dinner', 100, $2, $3)`, exp, alice, grp)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `
		INSERT INTO splits (id, expense_id, user_id, pending, completed)
		VALUES (gen_random_uuid(), $1, $2, 0, 50), (gen_random_uuid(), $1, $3, 50, 0)
	`, exp, alice, bob)
	require.NoError(t, err)
}

func requireSQLState(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, code, pgErr.Code)
}

// TestMigrations_SchemaDetails verifies the constraints the ledger relies on.
func TestMigrations_SchemaDetails(t *testing.T) {
	db := TestTx(t)
	ctx := context.Background()

	t.Run("expenses.amount is decimal(12,2)", func(t *testing.T) {
		var precision, scale int
		err := db.QueryRow(ctx, `
			SELECT numeric_precision, numeric_scale
			FROM information_schema.columns
			WHERE table_name = 'expenses' AND column_name = 'amount'
		`).Scan(&precision, &scale)
		require.NoError(t, err)
		require.Equal(t, 12, precision)
		require.Equal(t, 2, scale)
	})

	t.Run("splits.pending and completed are decimal(12,2)", func(t *testing.T) {
		for _, col := range []string{"pending", "completed"} {
			var scale int
			err := db.QueryRow(ctx, `
				SELECT numeric_scale
				FROM information_schema.columns
				WHERE table_name = 'splits' AND column_name = $1
			`, col).Scan(&scale)
			require.NoError(t, err)
			require.Equal(t, 2, scale, col)
		}
	})

	t.Run("members has unique constraint", func(t *testing.T) {
		var exists bool
		err := db.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.table_constraints
				WHERE table_name = 'members'
				AND constraint_type = 'UNIQUE'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists)
	})
}

func TestMigrations_Constraints(t *testing.T) {
	ctx := context.Background()

	t.Run("deleting an expense cascades to its splits", func(t *testing.T) {
		db := TestTx(t)
		seedExpense(t, db)

		_, err := db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, exp)
		require.NoError(t, err)

		var count int
		err = db.QueryRow(ctx, `SELECT COUNT(*) FROM splits WHERE expense_id = $1`, exp).Scan(&count)
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("rejects duplicate membership", func(t *testing.T) {
		db := TestTx(t)
		seedExpense(t, db)

		_, err := db.Exec(ctx, `INSERT INTO members (id, user_id, group_id) VALUES (gen_random_uuid(), $1, $2)`, bob, grp)
		require.NoError(t, err)
		_, err = db.Exec(ctx, `INSERT INTO members (id, user_id, group_id) VALUES (gen_random_uuid(), $1, $2)`, bob, grp)
		requireSQLState(t, err, "23505")
	})

	t.Run("rejects duplicate split user on one expense", func(t *testing.T) {
		db := TestTx(t)
		seedExpense(t, db)

		_, err := db.Exec(ctx, `INSERT INTO splits (id, expense_id, user_id, pending) VALUES (gen_random_uuid(), $1, $2, 1)`, exp, bob)
		requireSQLState(t, err, "23505")
	})

	t.Run("rejects non-positive expense amount", func(t *testing.T) {
		db := TestTx(t)
		seedExpense(t, db)

		_, err := db.Exec(ctx, `UPDATE expenses SET amount = 0 WHERE id = $1`, exp)
		requireSQLState(t, err, "23514")
	})

	t.Run("rejects negative pending", func(t *testing.T) {
		db := TestTx(t)
		seedExpense(t, db)

		_, err := db.Exec(ctx, `UPDATE splits SET pending = -1 WHERE user_id = $1`, bob)
		requireSQLState(t, err, "23514")
	})

	t.Run("rejects unknown user status", func(t *testing.T) {
		db := TestTx(t)
		_, err := db.Exec(ctx, `INSERT INTO users (id, email, status) VALUES (gen_random_uuid(), 'x@migrations.test', 'BANNED')`)
		requireSQLState(t, err, "23514")
	})
}
