// Package models defines the domain entities for the split ledger.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits money is kept at.
const MinorUnits = 2

// MaxTagNameLength is the maximum allowed length for tag names.
const MaxTagNameLength = 30

// UserStatus represents whether a user has signed in at least once.
type UserStatus string

// User statuses.
const (
	UserStatusJoined  UserStatus = "JOINED"
	UserStatusInvited UserStatus = "INVITED"
)

// IsValid reports whether s is a known user status.
func (s UserStatus) IsValid() bool {
	return s == UserStatusJoined || s == UserStatusInvited
}

// MemberStatus represents the state of a group membership.
type MemberStatus string

// Member statuses.
const (
	MemberStatusJoined  MemberStatus = "JOINED"
	MemberStatusPending MemberStatus = "PENDING"
	MemberStatusLeft    MemberStatus = "LEFT"
	MemberStatusInvited MemberStatus = "INVITED"
)

// IsValid reports whether s is a known member status.
func (s MemberStatus) IsValid() bool {
	switch s {
	case MemberStatusJoined, MemberStatusPending, MemberStatusLeft, MemberStatusInvited:
		return true
	}
	return false
}

// MemberRole is the role a member holds within a group.
type MemberRole string

// Member roles.
const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// IsValid reports whether r is a known member role.
func (r MemberRole) IsValid() bool {
	return r == MemberRoleOwner || r == MemberRoleAdmin || r == MemberRoleMember
}

// ExpenseType classifies the direction of an expense.
type ExpenseType string

// Expense types.
const (
	ExpenseTypePaid     ExpenseType = "PAID"
	ExpenseTypeReceived ExpenseType = "RECEIVED"
	ExpenseTypeCashback ExpenseType = "CASHBACK"
	ExpenseTypeSelf     ExpenseType = "SELF"
)

// IsValid reports whether t is a known expense type.
func (t ExpenseType) IsValid() bool {
	switch t {
	case ExpenseTypePaid, ExpenseTypeReceived, ExpenseTypeCashback, ExpenseTypeSelf:
		return true
	}
	return false
}

// User represents a ledger user.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     *string
	Avatar    string
	Status    UserStatus
	InvitedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Group is a set of members sharing expenses. AuthorID never changes after creation.
type Group struct {
	ID        string
	Name      string
	Icon      string
	Banner    string
	Tags      []string
	AuthorID  string
	Author    *User
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member links a user to a group. There is at most one row per (user, group).
type Member struct {
	ID        string
	UserID    string
	User      *User
	GroupID   string
	Status    MemberStatus
	Role      MemberRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the membership grants rights over the group.
func (m Member) IsActive() bool {
	return m.Status == MemberStatusJoined
}

// Expense represents a single expense entry.
// Author and Group are resolved on load; Group.Author is resolved as well.
type Expense struct {
	ID          string
	Title       string
	Description string
	Amount      decimal.Decimal
	AuthorID    string
	Author      *User
	Timestamp   time.Time
	GroupID     *string
	Group       *Group
	Tags        []string
	Icon        string
	Type        ExpenseType
	Method      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPersonal reports whether the expense belongs to no group.
func (e Expense) IsPersonal() bool {
	return e.GroupID == nil
}

// Split is one participant's share of an expense.
// Pending + Completed is the participant's share.
type Split struct {
	ID        string
	ExpenseID string
	Expense   *Expense
	UserID    string
	User      *User
	Pending   decimal.Decimal
	Completed decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Share returns the total share this split represents.
func (s Split) Share() decimal.Decimal {
	return s.Pending.Add(s.Completed)
}

// SplitInput is a requested share of an expense for one user.
type SplitInput struct {
	UserID string
	Amount decimal.Decimal
}

// Tag is a label attached to expenses.
type Tag struct {
	ID        int
	Name      string
	CreatedAt time.Time
}
