package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// MemberRepository handles group membership database operations.
type MemberRepository struct {
	db database.PGXDB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db database.PGXDB) *MemberRepository {
	return &MemberRepository{db: db}
}

var selectMember = `
	SELECT m.id, m.user_id, m.group_id, m.status, m.role, m.created_at, m.updated_at, ` + userColumns("u") + `
	FROM members m
	JOIN users u ON u.id = m.user_id`

// Create inserts a membership row. A second row for the same (user, group) yields ErrDuplicate.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	ensureID(&member.ID)
	if member.Status == "" {
		member.Status = models.MemberStatusJoined
	}
	if member.Role == "" {
		member.Role = models.MemberRoleMember
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO members (id, user_id, group_id, status, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, member.ID, member.UserID, member.GroupID, member.Status, member.Role,
	).Scan(&member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return writeErr("create member", err)
	}
	return nil
}

// GetByGroupID lists the members of a group with their users resolved.
func (r *MemberRepository) GetByGroupID(ctx context.Context, groupID string) ([]models.Member, error) {
	if !validID(groupID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectMember+` WHERE m.group_id = $1 ORDER BY m.created_at, m.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members by group: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// GetByUserIDs lists every membership held by any of the given users.
func (r *MemberRepository) GetByUserIDs(ctx context.Context, userIDs []string) ([]models.Member, error) {
	ids := validIDs(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectMember+` WHERE m.user_id = ANY($1::uuid[]) ORDER BY m.created_at, m.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query members by users: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

func scanMembers(rows rowsScanner) ([]models.Member, error) {
	var members []models.Member
	for rows.Next() {
		var m models.Member
		var u models.User
		dest := append([]any{&m.ID, &m.UserID, &m.GroupID, &m.Status, &m.Role, &m.CreatedAt, &m.UpdatedAt}, userDest(&u)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.User = &u
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}
