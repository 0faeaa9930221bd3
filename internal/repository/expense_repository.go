package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// ExpenseRepository handles expense database operations.
// Loaded expenses carry their author, group and group author, plus tag names.
type ExpenseRepository struct {
	db   database.PGXDB
	tags *TagRepository
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{db: db, tags: NewTagRepository(db)}
}

const expenseColumns = `e.id, e.title, e.description, e.amount, e.author_id, e.occurred_at, e.group_id,
	e.icon, e.type, e.method, e.created_at, e.updated_at`

var selectExpense = `
	SELECT ` + expenseColumns + `, ` + userColumns("a") + `, ` + groupColumns("g") + `, ` + userColumns("ga") + `
	FROM expenses e
	JOIN users a ON a.id = e.author_id
	LEFT JOIN groups g ON g.id = e.group_id
	LEFT JOIN users ga ON ga.id = g.author_id`

// expenseRow collects the joined columns of one expense.
type expenseRow struct {
	exp         models.Expense
	author      models.User
	group       nullGroup
	groupAuthor nullUser
}

func (r *expenseRow) dest(withGroupAuthor bool) []any {
	e := &r.exp
	dest := []any{&e.ID, &e.Title, &e.Description, &e.Amount, &e.AuthorID, &e.Timestamp, &e.GroupID,
		&e.Icon, &e.Type, &e.Method, &e.CreatedAt, &e.UpdatedAt}
	dest = append(dest, userDest(&r.author)...)
	dest = append(dest, r.group.dest()...)
	if withGroupAuthor {
		dest = append(dest, r.groupAuthor.dest()...)
	}
	return dest
}

func (r *expenseRow) expense() *models.Expense {
	exp := r.exp
	author := r.author
	exp.Author = &author
	exp.Group = r.group.group()
	if exp.Group != nil {
		exp.Group.Author = r.groupAuthor.user()
	}
	return &exp
}

// Create inserts an expense and its tags. A zero Timestamp defaults to now.
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	ensureID(&expense.ID)
	if expense.Type == "" {
		expense.Type = models.ExpenseTypePaid
	}
	var occurredAt *time.Time
	if !expense.Timestamp.IsZero() {
		occurredAt = &expense.Timestamp
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (id, title, description, amount, author_id, occurred_at, group_id, icon, type, method)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()), $7, $8, $9, $10)
		RETURNING occurred_at, created_at, updated_at
	`, expense.ID, expense.Title, expense.Description, expense.Amount, expense.AuthorID, occurredAt,
		expense.GroupID, expense.Icon, expense.Type, expense.Method,
	).Scan(&expense.Timestamp, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return writeErr("create expense", err)
	}
	if err := r.tags.SetExpenseTagNames(ctx, expense.ID, expense.Tags); err != nil {
		return err
	}
	return nil
}

// Update writes every mutable field of an expense and replaces its tags.
func (r *ExpenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	err := r.db.QueryRow(ctx, `
		UPDATE expenses SET
			title = $2,
			description = $3,
			amount = $4,
			occurred_at = $5,
			group_id = $6,
			icon = $7,
			type = $8,
			method = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, expense.ID, expense.Title, expense.Description, expense.Amount, expense.Timestamp,
		expense.GroupID, expense.Icon, expense.Type, expense.Method,
	).Scan(&expense.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update expense: %w", ErrNotFound)
	}
	if err != nil {
		return writeErr("update expense", err)
	}
	if err := r.tags.SetExpenseTagNames(ctx, expense.ID, expense.Tags); err != nil {
		return err
	}
	return nil
}

// Delete removes an expense by ID. Its splits and tag links go with it.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("failed to delete expense: %w", ErrNotFound)
	}
	result, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete expense: %w", ErrNotFound)
	}
	return nil
}

// GetByID retrieves an expense by ID. Returns nil when absent or when the id is malformed.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	if !validID(id) {
		return nil, nil
	}
	var row expenseRow
	err := r.db.QueryRow(ctx, selectExpense+` WHERE e.id = $1`, id).Scan(row.dest(true)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	exp := row.expense()
	names, err := r.tags.GetNamesByExpenseIDs(ctx, []string{exp.ID})
	if err != nil {
		return nil, err
	}
	exp.Tags = names[exp.ID]
	return exp, nil
}

// GetByAuthorID retrieves all expenses recorded by a user, newest first.
func (r *ExpenseRepository) GetByAuthorID(ctx context.Context, authorID string) ([]models.Expense, error) {
	if !validID(authorID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectExpense+`
		WHERE e.author_id = $1
		ORDER BY e.occurred_at DESC, e.id DESC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	return r.scanExpenses(ctx, rows)
}

// GetByGroupID retrieves all expenses of a group, newest first.
func (r *ExpenseRepository) GetByGroupID(ctx context.Context, groupID string) ([]models.Expense, error) {
	if !validID(groupID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectExpense+`
		WHERE e.group_id = $1
		ORDER BY e.occurred_at DESC, e.id DESC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses by group: %w", err)
	}
	defer rows.Close()

	return r.scanExpenses(ctx, rows)
}

// scanExpenses scans joined expense rows and batch-loads their tags.
func (r *ExpenseRepository) scanExpenses(ctx context.Context, rows pgx.Rows) ([]models.Expense, error) {
	var expenses []models.Expense
	for rows.Next() {
		var row expenseRow
		if err := rows.Scan(row.dest(true)...); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *row.expense())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	rows.Close()

	if len(expenses) == 0 {
		return expenses, nil
	}
	ids := make([]string, len(expenses))
	for i := range expenses {
		ids[i] = expenses[i].ID
	}
	names, err := r.tags.GetNamesByExpenseIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Tags = names[expenses[i].ID]
	}
	return expenses, nil
}
