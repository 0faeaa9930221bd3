package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// tx reads and writes the private state of one InTx call.
type tx struct {
	store *Store
	state *state
}

var _ ledger.Tx = (*tx)(nil)

func (t *tx) FindUser(_ context.Context, id string) (*models.User, error) {
	if err := t.store.record("FindUser"); err != nil {
		return nil, err
	}
	return t.state.user(id), nil
}

func (t *tx) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	if err := t.store.record("FindUserByEmail"); err != nil {
		return nil, err
	}
	return t.state.userByEmail(email), nil
}

func (t *tx) SearchUsersByEmail(_ context.Context, query string, limit int) ([]models.User, error) {
	if err := t.store.record("SearchUsersByEmail"); err != nil {
		return nil, err
	}
	return t.state.searchUsers(query, limit), nil
}

func (t *tx) FindGroup(_ context.Context, id string) (*models.Group, error) {
	if err := t.store.record("FindGroup"); err != nil {
		return nil, err
	}
	return t.state.group(id, true), nil
}

func (t *tx) GroupsForUser(_ context.Context, userID string) ([]models.Group, error) {
	if err := t.store.record("GroupsForUser"); err != nil {
		return nil, err
	}
	return t.state.groupsForUser(userID), nil
}

func (t *tx) MembersByGroup(_ context.Context, groupID string) ([]models.Member, error) {
	if err := t.store.record("MembersByGroup"); err != nil {
		return nil, err
	}
	return t.state.membersByGroup(groupID), nil
}

func (t *tx) MembersByUsers(_ context.Context, userIDs []string) ([]models.Member, error) {
	if err := t.store.record("MembersByUsers"); err != nil {
		return nil, err
	}
	return t.state.membersByUsers(userIDs), nil
}

func (t *tx) FindExpense(_ context.Context, id string) (*models.Expense, error) {
	if err := t.store.record("FindExpense"); err != nil {
		return nil, err
	}
	return t.state.expense(id), nil
}

func (t *tx) ExpensesByAuthor(_ context.Context, authorID string) ([]models.Expense, error) {
	if err := t.store.record("ExpensesByAuthor"); err != nil {
		return nil, err
	}
	return t.state.expensesWhere(func(e models.Expense) bool { return e.AuthorID == authorID }), nil
}

func (t *tx) ExpensesByGroup(_ context.Context, groupID string) ([]models.Expense, error) {
	if err := t.store.record("ExpensesByGroup"); err != nil {
		return nil, err
	}
	return t.state.expensesWhere(func(e models.Expense) bool { return e.GroupID != nil && *e.GroupID == groupID }), nil
}

func (t *tx) SplitsByExpense(_ context.Context, expenseID string) ([]models.Split, error) {
	if err := t.store.record("SplitsByExpense"); err != nil {
		return nil, err
	}
	return t.state.splitsByExpense(expenseID), nil
}

func (t *tx) SplitsByUser(_ context.Context, userID string) ([]models.Split, error) {
	if err := t.store.record("SplitsByUser"); err != nil {
		return nil, err
	}
	return t.state.resolvedSplitsWhere(func(sp models.Split, _ models.Expense) bool { return sp.UserID == userID }), nil
}

func (t *tx) SplitsByExpenseAuthor(_ context.Context, authorID string) ([]models.Split, error) {
	if err := t.store.record("SplitsByExpenseAuthor"); err != nil {
		return nil, err
	}
	return t.state.resolvedSplitsWhere(func(_ models.Split, e models.Expense) bool { return e.AuthorID == authorID }), nil
}

func (t *tx) CreateUser(_ context.Context, u *models.User) error {
	if err := t.store.record("CreateUser"); err != nil {
		return err
	}
	newID(&u.ID)
	if _, exists := t.state.users[u.ID]; exists {
		return fmt.Errorf("%w: user %s", ledger.ErrConflict, u.ID)
	}
	if err := t.checkUserUnique(u); err != nil {
		return err
	}
	if u.Status == "" {
		u.Status = models.UserStatusJoined
	}
	u.CreatedAt = t.store.now()
	u.UpdatedAt = u.CreatedAt
	t.state.users[u.ID] = *u
	return nil
}

func (t *tx) UpdateUser(_ context.Context, u *models.User) error {
	if err := t.store.record("UpdateUser"); err != nil {
		return err
	}
	existing, ok := t.state.users[u.ID]
	if !ok {
		return fmt.Errorf("%w: user %s", ledger.ErrNotFound, u.ID)
	}
	if err := t.checkUserUnique(u); err != nil {
		return err
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = t.store.now()
	t.state.users[u.ID] = *u
	return nil
}

func (t *tx) checkUserUnique(u *models.User) error {
	for _, other := range t.state.users {
		if other.ID == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("%w: email already registered", ledger.ErrConflict)
		}
		if u.Phone != nil && other.Phone != nil && *u.Phone == *other.Phone {
			return fmt.Errorf("%w: phone already registered", ledger.ErrConflict)
		}
	}
	return nil
}

func (t *tx) CreateGroup(_ context.Context, g *models.Group) error {
	if err := t.store.record("CreateGroup"); err != nil {
		return err
	}
	if _, ok := t.state.users[g.AuthorID]; !ok {
		return fmt.Errorf("failed to create group: author %s: %w", g.AuthorID, errForeignKey)
	}
	newID(&g.ID)
	g.CreatedAt = t.store.now()
	g.UpdatedAt = g.CreatedAt
	stored := *g
	stored.Author = nil
	stored.Tags = slices.Clone(g.Tags)
	t.state.groups[g.ID] = stored
	return nil
}

func (t *tx) UpdateGroup(_ context.Context, g *models.Group) error {
	if err := t.store.record("UpdateGroup"); err != nil {
		return err
	}
	existing, ok := t.state.groups[g.ID]
	if !ok {
		return fmt.Errorf("%w: group %s", ledger.ErrNotFound, g.ID)
	}
	existing.Name = g.Name
	existing.Icon = g.Icon
	existing.Banner = g.Banner
	existing.Tags = slices.Clone(g.Tags)
	existing.UpdatedAt = t.store.now()
	t.state.groups[g.ID] = existing
	g.UpdatedAt = existing.UpdatedAt
	return nil
}

func (t *tx) CreateMember(_ context.Context, m *models.Member) error {
	if err := t.store.record("CreateMember"); err != nil {
		return err
	}
	if _, ok := t.state.users[m.UserID]; !ok {
		return fmt.Errorf("failed to create member: user %s: %w", m.UserID, errForeignKey)
	}
	if _, ok := t.state.groups[m.GroupID]; !ok {
		return fmt.Errorf("failed to create member: group %s: %w", m.GroupID, errForeignKey)
	}
	for _, other := range t.state.members {
		if other.UserID == m.UserID && other.GroupID == m.GroupID {
			return fmt.Errorf("%w: member of group %s", ledger.ErrConflict, m.GroupID)
		}
	}
	newID(&m.ID)
	if m.Status == "" {
		m.Status = models.MemberStatusJoined
	}
	if m.Role == "" {
		m.Role = models.MemberRoleMember
	}
	m.CreatedAt = t.store.now()
	m.UpdatedAt = m.CreatedAt
	stored := *m
	stored.User = nil
	t.state.members[m.ID] = stored
	return nil
}

func (t *tx) CreateExpense(_ context.Context, e *models.Expense) error {
	if err := t.store.record("CreateExpense"); err != nil {
		return err
	}
	if err := t.checkExpenseRefs(e); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	newID(&e.ID)
	if _, exists := t.state.expenses[e.ID]; exists {
		return fmt.Errorf("%w: expense %s", ledger.ErrConflict, e.ID)
	}
	now := t.store.now()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	t.state.expenses[e.ID] = storedExpense(e)
	return nil
}

func (t *tx) UpdateExpense(_ context.Context, e *models.Expense) error {
	if err := t.store.record("UpdateExpense"); err != nil {
		return err
	}
	existing, ok := t.state.expenses[e.ID]
	if !ok {
		return fmt.Errorf("%w: expense %s", ledger.ErrNotFound, e.ID)
	}
	if err := t.checkExpenseRefs(e); err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	e.AuthorID = existing.AuthorID
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = t.store.now()
	if e.Timestamp.IsZero() {
		e.Timestamp = existing.Timestamp
	}
	t.state.expenses[e.ID] = storedExpense(e)
	return nil
}

func (t *tx) checkExpenseRefs(e *models.Expense) error {
	if !e.Amount.IsPositive() {
		return fmt.Errorf("amount %s violates check constraint", e.Amount.String())
	}
	if _, ok := t.state.users[e.AuthorID]; !ok {
		return fmt.Errorf("author %s: %w", e.AuthorID, errForeignKey)
	}
	if e.GroupID != nil {
		if _, ok := t.state.groups[*e.GroupID]; !ok {
			return fmt.Errorf("group %s: %w", *e.GroupID, errForeignKey)
		}
	}
	return nil
}

func storedExpense(e *models.Expense) models.Expense {
	stored := *e
	stored.Author = nil
	stored.Group = nil
	stored.Tags = slices.Clone(e.Tags)
	if e.GroupID != nil {
		id := *e.GroupID
		stored.GroupID = &id
	}
	return stored
}

func (t *tx) DeleteExpense(_ context.Context, id string) error {
	if err := t.store.record("DeleteExpense"); err != nil {
		return err
	}
	if _, ok := t.state.expenses[id]; !ok {
		return fmt.Errorf("%w: expense %s", ledger.ErrNotFound, id)
	}
	delete(t.state.expenses, id)
	for sid, sp := range t.state.splits {
		if sp.ExpenseID == id {
			delete(t.state.splits, sid)
		}
	}
	return nil
}

func (t *tx) CreateSplits(_ context.Context, splits []models.Split) error {
	if err := t.store.record("CreateSplits"); err != nil {
		return err
	}
	now := t.store.now()
	for i := range splits {
		sp := &splits[i]
		if err := t.checkSplit(sp); err != nil {
			return fmt.Errorf("failed to create split: %w", err)
		}
		for _, other := range t.state.splits {
			if other.ExpenseID == sp.ExpenseID && other.UserID == sp.UserID {
				return fmt.Errorf("%w: split of %s on expense %s", ledger.ErrConflict, sp.UserID, sp.ExpenseID)
			}
		}
		newID(&sp.ID)
		sp.CreatedAt = now
		sp.UpdatedAt = now
		stored := *sp
		stored.User = nil
		stored.Expense = nil
		t.state.splits[sp.ID] = stored
	}
	return nil
}

func (t *tx) UpdateSplits(_ context.Context, splits []models.Split) error {
	if err := t.store.record("UpdateSplits"); err != nil {
		return err
	}
	now := t.store.now()
	for i := range splits {
		sp := &splits[i]
		existing, ok := t.state.splits[sp.ID]
		if !ok {
			return fmt.Errorf("%w: split %s", ledger.ErrNotFound, sp.ID)
		}
		if err := t.checkSplit(sp); err != nil {
			return fmt.Errorf("failed to update split: %w", err)
		}
		existing.Pending = sp.Pending
		existing.Completed = sp.Completed
		existing.UpdatedAt = now
		sp.UpdatedAt = now
		t.state.splits[sp.ID] = existing
	}
	return nil
}

func (t *tx) checkSplit(sp *models.Split) error {
	if sp.Pending.IsNegative() || sp.Completed.IsNegative() {
		return fmt.Errorf("split %s/%s violates check constraint", sp.Pending.String(), sp.Completed.String())
	}
	if _, ok := t.state.expenses[sp.ExpenseID]; !ok {
		return fmt.Errorf("expense %s: %w", sp.ExpenseID, errForeignKey)
	}
	if _, ok := t.state.users[sp.UserID]; !ok {
		return fmt.Errorf("user %s: %w", sp.UserID, errForeignKey)
	}
	return nil
}

func (t *tx) DeleteSplits(_ context.Context, ids []string) error {
	if err := t.store.record("DeleteSplits"); err != nil {
		return err
	}
	for _, id := range ids {
		delete(t.state.splits, id)
	}
	return nil
}

func (t *tx) DeleteSplitsByExpense(_ context.Context, expenseID string) error {
	if err := t.store.record("DeleteSplitsByExpense"); err != nil {
		return err
	}
	for id, sp := range t.state.splits {
		if sp.ExpenseID == expenseID {
			delete(t.state.splits, id)
		}
	}
	return nil
}
