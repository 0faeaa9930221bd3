// Package repository implements PostgreSQL access for ledger records.
package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

const uniqueViolation = "23505"

var (
	// ErrNotFound is returned by writes that matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

type scanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	scanner
	Next() bool
	Err() error
}

// validID reports whether id is a well-formed UUID. Lookups by a malformed id find nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validIDs drops malformed ids.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// writeErr wraps a failed write, translating unique violations to ErrDuplicate.
func writeErr(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("failed to %s: %w: %s", action, ErrDuplicate, pgErr.ConstraintName)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func userColumns(alias string) string {
	cols := []string{"id", "name", "email", "phone", "avatar", "status", "invited_by", "created_at", "updated_at"}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func groupColumns(alias string) string {
	cols := []string{"id", "name", "icon", "banner", "tags", "author_id", "created_at", "updated_at"}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func userDest(u *models.User) []any {
	return []any{&u.ID, &u.Name, &u.Email, &u.Phone, &u.Avatar, &u.Status, &u.InvitedBy, &u.CreatedAt, &u.UpdatedAt}
}

func groupDest(g *models.Group) []any {
	return []any{&g.ID, &g.Name, &g.Icon, &g.Banner, &g.Tags, &g.AuthorID, &g.CreatedAt, &g.UpdatedAt}
}

// nullUser scans a user from the nullable side of a LEFT JOIN.
type nullUser struct {
	ID, Name, Email, Phone, Avatar, Status, InvitedBy *string
	CreatedAt, UpdatedAt                              *time.Time
}

func (n *nullUser) dest() []any {
	return []any{&n.ID, &n.Name, &n.Email, &n.Phone, &n.Avatar, &n.Status, &n.InvitedBy, &n.CreatedAt, &n.UpdatedAt}
}

func (n *nullUser) user() *models.User {
	if n.ID == nil {
		return nil
	}
	return &models.User{
		ID:        *n.ID,
		Name:      *n.Name,
		Email:     *n.Email,
		Phone:     n.Phone,
		Avatar:    *n.Avatar,
		Status:    models.UserStatus(*n.Status),
		InvitedBy: n.InvitedBy,
		CreatedAt: *n.CreatedAt,
		UpdatedAt: *n.UpdatedAt,
	}
}

// nullGroup scans a group from the nullable side of a LEFT JOIN.
type nullGroup struct {
	ID, Name, Icon, Banner, AuthorID *string
	Tags                             []string
	CreatedAt, UpdatedAt             *time.Time
}

func (n *nullGroup) dest() []any {
	return []any{&n.ID, &n.Name, &n.Icon, &n.Banner, &n.Tags, &n.AuthorID, &n.CreatedAt, &n.UpdatedAt}
}

func (n *nullGroup) group() *models.Group {
	if n.ID == nil {
		return nil
	}
	return &models.Group{
		ID:        *n.ID,
		Name:      *n.Name,
		Icon:      *n.Icon,
		Banner:    *n.Banner,
		Tags:      n.Tags,
		AuthorID:  *n.AuthorID,
		CreatedAt: *n.CreatedAt,
		UpdatedAt: *n.UpdatedAt,
	}
}
