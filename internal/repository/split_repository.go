package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// SplitRepository handles split database operations.
type SplitRepository struct {
	db database.PGXDB
}

// NewSplitRepository creates a new SplitRepository.
func NewSplitRepository(db database.PGXDB) *SplitRepository {
	return &SplitRepository{db: db}
}

const splitColumns = `s.id, s.expense_id, s.user_id, s.pending, s.completed, s.created_at, s.updated_at`

func splitDest(s *models.Split) []any {
	return []any{&s.ID, &s.ExpenseID, &s.UserID, &s.Pending, &s.Completed, &s.CreatedAt, &s.UpdatedAt}
}

// selectResolvedSplit loads a split with its user and its expense (author and group, no deeper).
var selectResolvedSplit = `
	SELECT ` + splitColumns + `, ` + userColumns("u") + `,
	       ` + expenseColumns + `, ` + userColumns("a") + `, ` + groupColumns("g") + `
	FROM splits s
	JOIN users u ON u.id = s.user_id
	JOIN expenses e ON e.id = s.expense_id
	JOIN users a ON a.id = e.author_id
	LEFT JOIN groups g ON g.id = e.group_id`

// CreateBatch inserts splits one by one inside the caller's transaction.
func (r *SplitRepository) CreateBatch(ctx context.Context, splits []models.Split) error {
	for i := range splits {
		s := &splits[i]
		ensureID(&s.ID)
		err := r.db.QueryRow(ctx, `
			INSERT INTO splits (id, expense_id, user_id, pending, completed)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`, s.ID, s.ExpenseID, s.UserID, s.Pending, s.Completed).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return writeErr("create split", err)
		}
	}
	return nil
}

// UpdateBatch overwrites pending and completed of existing splits.
func (r *SplitRepository) UpdateBatch(ctx context.Context, splits []models.Split) error {
	for _, s := range splits {
		result, err := r.db.Exec(ctx, `
			UPDATE splits SET pending = $2, completed = $3, updated_at = NOW()
			WHERE id = $1
		`, s.ID, s.Pending, s.Completed)
		if err != nil {
			return fmt.Errorf("failed to update split %s: %w", s.ID, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("failed to update split %s: %w", s.ID, ErrNotFound)
		}
	}
	return nil
}

// DeleteByIDs removes the given splits.
func (r *SplitRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM splits WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	return nil
}

// DeleteByExpenseID removes every split of an expense.
func (r *SplitRepository) DeleteByExpenseID(ctx context.Context, expenseID string) error {
	if !validID(expenseID) {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM splits WHERE expense_id = $1`, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete splits of expense: %w", err)
	}
	return nil
}

// GetByExpenseID lists the splits of an expense with their users resolved.
func (r *SplitRepository) GetByExpenseID(ctx context.Context, expenseID string) ([]models.Split, error) {
	if !validID(expenseID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+splitColumns+`, `+userColumns("u")+`
		FROM splits s
		JOIN users u ON u.id = s.user_id
		WHERE s.expense_id = $1
		ORDER BY s.created_at, s.id
	`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var s models.Split
		var u models.User
		if err := rows.Scan(append(splitDest(&s), userDest(&u)...)...); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		s.User = &u
		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating splits: %w", err)
	}
	return splits, nil
}

// GetByUserID lists every split a user participates in, with expenses resolved.
func (r *SplitRepository) GetByUserID(ctx context.Context, userID string) ([]models.Split, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectResolvedSplit+`
		WHERE s.user_id = $1
		ORDER BY e.occurred_at DESC, s.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits by user: %w", err)
	}
	defer rows.Close()

	return scanResolvedSplits(rows)
}

// GetByExpenseAuthorID lists the splits on every expense a user recorded.
func (r *SplitRepository) GetByExpenseAuthorID(ctx context.Context, authorID string) ([]models.Split, error) {
	if !validID(authorID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectResolvedSplit+`
		WHERE e.author_id = $1
		ORDER BY e.occurred_at DESC, s.id
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits by expense author: %w", err)
	}
	defer rows.Close()

	return scanResolvedSplits(rows)
}

func scanResolvedSplits(rows rowsScanner) ([]models.Split, error) {
	var splits []models.Split
	for rows.Next() {
		var s models.Split
		var u models.User
		var exp expenseRow
		dest := append(splitDest(&s), userDest(&u)...)
		dest = append(dest, exp.dest(false)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		s.User = &u
		s.Expense = exp.expense()
		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating splits: %w", err)
	}
	return splits, nil
}
