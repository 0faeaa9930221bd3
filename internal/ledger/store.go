package ledger

import (
	"context"

	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// Reader is the read side of the ledger store. Lookups by id return nil, nil when
// the record is absent or the id is malformed; lists return nil when nothing matches.
// Loaded expenses carry Author, Group and Group.Author. Loaded splits carry User,
// and splits listed per user or per author also carry Expense with Author and Group.
type Reader interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	SearchUsersByEmail(ctx context.Context, query string, limit int) ([]models.User, error)

	FindGroup(ctx context.Context, id string) (*models.Group, error)
	GroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	MembersByGroup(ctx context.Context, groupID string) ([]models.Member, error)
	MembersByUsers(ctx context.Context, userIDs []string) ([]models.Member, error)

	FindExpense(ctx context.Context, id string) (*models.Expense, error)
	ExpensesByAuthor(ctx context.Context, authorID string) ([]models.Expense, error)
	ExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)

	SplitsByExpense(ctx context.Context, expenseID string) ([]models.Split, error)
	SplitsByUser(ctx context.Context, userID string) ([]models.Split, error)
	SplitsByExpenseAuthor(ctx context.Context, authorID string) ([]models.Split, error)
}

// Tx is a unit of work. Writes become visible to others only when the
// function passed to Store.InTx returns nil.
type Tx interface {
	Reader

	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error

	CreateGroup(ctx context.Context, group *models.Group) error
	UpdateGroup(ctx context.Context, group *models.Group) error
	CreateMember(ctx context.Context, member *models.Member) error

	CreateExpense(ctx context.Context, expense *models.Expense) error
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	DeleteExpense(ctx context.Context, id string) error

	CreateSplits(ctx context.Context, splits []models.Split) error
	UpdateSplits(ctx context.Context, splits []models.Split) error
	DeleteSplits(ctx context.Context, ids []string) error
	DeleteSplitsByExpense(ctx context.Context, expenseID string) error
}

// Store persists ledger records.
type Store interface {
	Reader

	// InTx runs fn in one transaction, serialised against every other
	// InTx call holding the same lockKey. An error from fn rolls back all writes.
	InTx(ctx context.Context, lockKey string, fn func(ctx context.Context, tx Tx) error) error
}

// Notifier delivers user-facing notifications. Delivery failures never affect ledger state.
type Notifier interface {
	SendInvite(ctx context.Context, email string, inviter *models.User) error
}
