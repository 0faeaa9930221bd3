package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

func TestSplitRepository(t *testing.T) {
	r, ctx := setupRepos(t)
	alice := createUser(t, r, ctx, "alice")
	bob := createUser(t, r, ctx, "bob")
	carol := createUser(t, r, ctx, "carol")
	group := createGroup(t, r, ctx, alice, bob, carol)
	expense := createExpense(t, r, ctx, alice, group, "300")

	splits := []models.Split{
		{ExpenseID: expense.ID, UserID: alice.ID, Completed: decimal.NewFromInt(100)},
		{ExpenseID: expense.ID, UserID: bob.ID, Pending: decimal.NewFromInt(100)},
		{ExpenseID: expense.ID, UserID: carol.ID, Pending: decimal.NewFromInt(100)},
	}
	require.NoError(t, r.splits.CreateBatch(ctx, splits))
	for _, s := range splits {
		require.NotEmpty(t, s.ID)
	}

	t.Run("lists splits of an expense", func(t *testing.T) {
		got, err := r.splits.GetByExpenseID(ctx, expense.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)

		total := decimal.Zero
		for _, s := range got {
			require.NotNil(t, s.User)
			total = total.Add(s.Share())
		}
		require.True(t, expense.Amount.Equal(total))
	})

	t.Run("updates pending and completed", func(t *testing.T) {
		upd := splits[1]
		upd.Pending = decimal.NewFromInt(40)
		upd.Completed = decimal.NewFromInt(60)
		require.NoError(t, r.splits.UpdateBatch(ctx, []models.Split{upd}))

		got, err := r.splits.GetByUserID(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.True(t, decimal.NewFromInt(40).Equal(got[0].Pending))
		require.True(t, decimal.NewFromInt(60).Equal(got[0].Completed))
	})

	t.Run("resolves expense two levels deep", func(t *testing.T) {
		got, err := r.splits.GetByUserID(ctx, carol.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].Expense)
		require.Equal(t, alice.ID, got[0].Expense.Author.ID)
		require.Equal(t, group.ID, got[0].Expense.Group.ID)
		require.Nil(t, got[0].Expense.Group.Author)
	})

	t.Run("lists splits on authored expenses", func(t *testing.T) {
		got, err := r.splits.GetByExpenseAuthorID(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, got, 3)
	})

	t.Run("deletes by id", func(t *testing.T) {
		require.NoError(t, r.splits.DeleteByIDs(ctx, []string{splits[2].ID, "bogus"}))

		got, err := r.splits.GetByExpenseID(ctx, expense.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("update of missing split fails", func(t *testing.T) {
		err := r.splits.UpdateBatch(ctx, []models.Split{{ID: splits[2].ID}})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deletes by expense", func(t *testing.T) {
		require.NoError(t, r.splits.DeleteByExpenseID(ctx, expense.ID))

		got, err := r.splits.GetByExpenseID(ctx, expense.ID)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("rejects second split for the same user", func(t *testing.T) {
		require.NoError(t, r.splits.CreateBatch(ctx, []models.Split{{ExpenseID: expense.ID, UserID: bob.ID, Pending: decimal.NewFromInt(1)}}))
		err := r.splits.CreateBatch(ctx, []models.Split{{ExpenseID: expense.ID, UserID: bob.ID, Pending: decimal.NewFromInt(1)}})
		require.ErrorIs(t, err, ErrDuplicate)
	})
}
