package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// TagRepository handles tag database operations.
type TagRepository struct {
	db database.PGXDB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db database.PGXDB) *TagRepository {
	return &TagRepository{db: db}
}

// GetOrCreate inserts a tag if it doesn't exist and returns it.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}

	var tag models.Tag
	err = r.db.QueryRow(ctx, `SELECT id, name, created_at FROM tags WHERE name = $1`, name).
		Scan(&tag.ID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

// SetExpenseTagNames replaces all tags on an expense, creating missing tags.
func (r *TagRepository) SetExpenseTagNames(ctx context.Context, expenseID string, names []string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM expense_tags WHERE expense_id = $1`, expenseID)
	if err != nil {
		return fmt.Errorf("failed to clear expense tags: %w", err)
	}

	for _, name := range names {
		tag, err := r.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		_, err = r.db.Exec(ctx, `
			INSERT INTO expense_tags (expense_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, expenseID, tag.ID)
		if err != nil {
			return fmt.Errorf("failed to add tag %d to expense %s: %w", tag.ID, expenseID, err)
		}
	}
	return nil
}

// GetNamesByExpenseIDs batch-loads tag names for multiple expenses.
func (r *TagRepository) GetNamesByExpenseIDs(ctx context.Context, expenseIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	ids := validIDs(expenseIDs)
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT et.expense_id, t.name
		FROM tags t
		JOIN expense_tags et ON t.id = et.tag_id
		WHERE et.expense_id = ANY($1::uuid[])
		ORDER BY t.name
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags by expense IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID, name string
		if err := rows.Scan(&expenseID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		result[expenseID] = append(result[expenseID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return result, nil
}
