package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

type repos struct {
	users    *UserRepository
	groups   *GroupRepository
	members  *MemberRepository
	expenses *ExpenseRepository
	splits   *SplitRepository
	tags     *TagRepository
}

func setupRepos(t *testing.T) (*repos, context.Context) {
	t.Helper()

	tx := database.TestTx(t)
	return &repos{
		users:    NewUserRepository(tx),
		groups:   NewGroupRepository(tx),
		members:  NewMemberRepository(tx),
		expenses: NewExpenseRepository(tx),
		splits:   NewSplitRepository(tx),
		tags:     NewTagRepository(tx),
	}, context.Background()
}

func createUser(t *testing.T, r *repos, ctx context.Context, name string) *models.User {
	t.Helper()

	user := &models.User{Name: name, Email: name + "-" + uuid.NewString()[:8] + "@example.com"}
	require.NoError(t, r.users.Create(ctx, user))
	return user
}

func createGroup(t *testing.T, r *repos, ctx context.Context, author *models.User, members ...*models.User) *models.Group {
	t.Helper()

	group := &models.Group{Name: "Trip", AuthorID: author.ID, Tags: []string{"travel"}}
	require.NoError(t, r.groups.Create(ctx, group))
	require.NoError(t, r.members.Create(ctx, &models.Member{
		UserID: author.ID, GroupID: group.ID, Role: models.MemberRoleOwner,
	}))
	for _, m := range members {
		require.NoError(t, r.members.Create(ctx, &models.Member{UserID: m.ID, GroupID: group.ID}))
	}
	return group
}

func createExpense(t *testing.T, r *repos, ctx context.Context, author *models.User, group *models.Group, amount string) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		Title:    "Dinner",
		Amount:   decimal.RequireFromString(amount),
		AuthorID: author.ID,
	}
	if group != nil {
		expense.GroupID = &group.ID
	}
	require.NoError(t, r.expenses.Create(ctx, expense))
	return expense
}
