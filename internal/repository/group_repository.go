package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// GroupRepository handles group database operations.
type GroupRepository struct {
	db database.PGXDB
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(db database.PGXDB) *GroupRepository {
	return &GroupRepository{db: db}
}

var selectGroup = `
	SELECT ` + groupColumns("g") + `, ` + userColumns("ga") + `
	FROM groups g
	JOIN users ga ON ga.id = g.author_id`

func scanGroup(row scanner) (*models.Group, error) {
	var group models.Group
	var author models.User
	if err := row.Scan(append(groupDest(&group), userDest(&author)...)...); err != nil {
		return nil, err
	}
	group.Author = &author
	return &group, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	ensureID(&group.ID)
	if group.Tags == nil {
		group.Tags = []string{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO groups (id, name, icon, banner, tags, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, group.ID, group.Name, group.Icon, group.Banner, group.Tags, group.AuthorID,
	).Scan(&group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		return writeErr("create group", err)
	}
	return nil
}

// Update writes the descriptive fields of a group. The author is never changed.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	if group.Tags == nil {
		group.Tags = []string{}
	}
	err := r.db.QueryRow(ctx, `
		UPDATE groups SET
			name = $2,
			icon = $3,
			banner = $4,
			tags = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, group.ID, group.Name, group.Icon, group.Banner, group.Tags).Scan(&group.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update group: %w", ErrNotFound)
	}
	if err != nil {
		return writeErr("update group", err)
	}
	return nil
}

// GetByID retrieves a group with its author resolved.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	if !validID(id) {
		return nil, nil
	}
	group, err := scanGroup(r.db.QueryRow(ctx, selectGroup+` WHERE g.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// GetByMemberUserID retrieves the groups a user has joined.
func (r *GroupRepository) GetByMemberUserID(ctx context.Context, userID string) ([]models.Group, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectGroup+`
		JOIN members m ON m.group_id = g.id
		WHERE m.user_id = $1 AND m.status = $2
		ORDER BY g.created_at, g.id
	`, userID, models.MemberStatusJoined)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for user: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}
