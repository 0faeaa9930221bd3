// Package postgres implements ledger.Store on the PostgreSQL repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"gitlab.com/yelinaung/split-ledger/internal/repository"
)

// Store serves reads from db and runs units of work in transactions started on it.
type Store struct {
	repos
	db database.PGXDB
}

var _ ledger.Store = (*Store)(nil)

// New returns a Store over db. db must also implement database.TxBeginner
// (a pool, or a transaction for nested savepoints) for InTx to work.
func New(db database.PGXDB) *Store {
	return &Store{repos: newRepos(db), db: db}
}

// InTx runs fn in a transaction holding a transaction-scoped advisory lock on lockKey.
func (s *Store) InTx(ctx context.Context, lockKey string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := database.LockKey(ctx, tx, lockKey); err != nil {
			return err
		}
		return fn(ctx, &txStore{repos: newRepos(tx)})
	})
}

// mapErr translates repository errors into ledger errors. Other errors pass
// through unchanged and are reported by the service as store failures.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", ledger.ErrConflict, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ledger.ErrNotFound, err)
	}
	return err
}

type repos struct {
	users    *repository.UserRepository
	groups   *repository.GroupRepository
	members  *repository.MemberRepository
	expenses *repository.ExpenseRepository
	splits   *repository.SplitRepository
}

func newRepos(db database.PGXDB) repos {
	return repos{
		users:    repository.NewUserRepository(db),
		groups:   repository.NewGroupRepository(db),
		members:  repository.NewMemberRepository(db),
		expenses: repository.NewExpenseRepository(db),
		splits:   repository.NewSplitRepository(db),
	}
}

func (r repos) FindUser(ctx context.Context, id string) (*models.User, error) {
	u, err := r.users.GetByID(ctx, id)
	return u, mapErr(err)
}

func (r repos) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := r.users.GetByEmail(ctx, email)
	return u, mapErr(err)
}

func (r repos) SearchUsersByEmail(ctx context.Context, query string, limit int) ([]models.User, error) {
	users, err := r.users.SearchByEmail(ctx, query, limit)
	return users, mapErr(err)
}

func (r repos) FindGroup(ctx context.Context, id string) (*models.Group, error) {
	g, err := r.groups.GetByID(ctx, id)
	return g, mapErr(err)
}

func (r repos) GroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	groups, err := r.groups.GetByMemberUserID(ctx, userID)
	return groups, mapErr(err)
}

func (r repos) MembersByGroup(ctx context.Context, groupID string) ([]models.Member, error) {
	members, err := r.members.GetByGroupID(ctx, groupID)
	return members, mapErr(err)
}

func (r repos) MembersByUsers(ctx context.Context, userIDs []string) ([]models.Member, error) {
	members, err := r.members.GetByUserIDs(ctx, userIDs)
	return members, mapErr(err)
}

func (r repos) FindExpense(ctx context.Context, id string) (*models.Expense, error) {
	e, err := r.expenses.GetByID(ctx, id)
	return e, mapErr(err)
}

func (r repos) ExpensesByAuthor(ctx context.Context, authorID string) ([]models.Expense, error) {
	expenses, err := r.expenses.GetByAuthorID(ctx, authorID)
	return expenses, mapErr(err)
}

func (r repos) ExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	expenses, err := r.expenses.GetByGroupID(ctx, groupID)
	return expenses, mapErr(err)
}

func (r repos) SplitsByExpense(ctx context.Context, expenseID string) ([]models.Split, error) {
	splits, err := r.splits.GetByExpenseID(ctx, expenseID)
	return splits, mapErr(err)
}

func (r repos) SplitsByUser(ctx context.Context, userID string) ([]models.Split, error) {
	splits, err := r.splits.GetByUserID(ctx, userID)
	return splits, mapErr(err)
}

func (r repos) SplitsByExpenseAuthor(ctx context.Context, authorID string) ([]models.Split, error) {
	splits, err := r.splits.GetByExpenseAuthorID(ctx, authorID)
	return splits, mapErr(err)
}

// txStore writes through repositories bound to one transaction.
type txStore struct {
	repos
}

var _ ledger.Tx = (*txStore)(nil)

func (t *txStore) CreateUser(ctx context.Context, user *models.User) error {
	return mapErr(t.users.Create(ctx, user))
}

func (t *txStore) UpdateUser(ctx context.Context, user *models.User) error {
	return mapErr(t.users.Update(ctx, user))
}

func (t *txStore) CreateGroup(ctx context.Context, group *models.Group) error {
	return mapErr(t.groups.Create(ctx, group))
}

func (t *txStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	return mapErr(t.groups.Update(ctx, group))
}

func (t *txStore) CreateMember(ctx context.Context, member *models.Member) error {
	return mapErr(t.members.Create(ctx, member))
}

func (t *txStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return mapErr(t.expenses.Create(ctx, expense))
}

func (t *txStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	return mapErr(t.expenses.Update(ctx, expense))
}

func (t *txStore) DeleteExpense(ctx context.Context, id string) error {
	return mapErr(t.expenses.Delete(ctx, id))
}

func (t *txStore) CreateSplits(ctx context.Context, splits []models.Split) error {
	return mapErr(t.splits.CreateBatch(ctx, splits))
}

func (t *txStore) UpdateSplits(ctx context.Context, splits []models.Split) error {
	return mapErr(t.splits.UpdateBatch(ctx, splits))
}

func (t *txStore) DeleteSplits(ctx context.Context, ids []string) error {
	return mapErr(t.splits.DeleteByIDs(ctx, ids))
}

func (t *txStore) DeleteSplitsByExpense(ctx context.Context, expenseID string) error {
	return mapErr(t.splits.DeleteByExpenseID(ctx, expenseID))
}
