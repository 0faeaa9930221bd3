package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/split-ledger/internal/database"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// UserRepository handles user database operations.
type UserRepository struct {
	db database.PGXDB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db database.PGXDB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. An empty ID is filled with a fresh UUID.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	ensureID(&user.ID)
	if user.Status == "" {
		user.Status = models.UserStatusJoined
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, name, email, phone, avatar, status, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, user.ID, user.Name, user.Email, user.Phone, user.Avatar, user.Status, user.InvitedBy,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return writeErr("create user", err)
	}
	return nil
}

// Update writes the mutable profile fields and status of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.QueryRow(ctx, `
		UPDATE users SET
			name = $2,
			email = $3,
			phone = $4,
			avatar = $5,
			status = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, user.ID, user.Name, user.Email, user.Phone, user.Avatar, user.Status).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update user: %w", ErrNotFound)
	}
	if err != nil {
		return writeErr("update user", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns nil when absent or when the id is malformed.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, nil
	}
	var user models.User
	err := r.db.QueryRow(ctx, `SELECT `+userColumns("u")+` FROM users u WHERE u.id = $1`, id).
		Scan(userDest(&user)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, `SELECT `+userColumns("u")+` FROM users u WHERE LOWER(u.email) = LOWER($1)`, email).
		Scan(userDest(&user)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// SearchByEmail returns users whose email contains query, ignoring case.
func (r *UserRepository) SearchByEmail(ctx context.Context, query string, limit int) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns("u")+`
		FROM users u
		WHERE u.email ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY u.email
		LIMIT $2
	`, escapeLike(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(userDest(&user)...); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
