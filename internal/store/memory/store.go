// Package memory implements ledger.Store in process memory.
// It backs the unit tests of the ledger service.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// Store keeps ledger records in maps. Transactions are serialised and work on a
// private copy that replaces the committed state only when they succeed.
type Store struct {
	txMu sync.Mutex

	mu    sync.RWMutex
	state *state
	now   func() time.Time

	callsMu  sync.Mutex
	calls    map[string]int
	failures map[string]error
}

var _ ledger.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		state:    newState(),
		now:      time.Now,
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// Calls returns how many times op was invoked, inside or outside transactions.
func (s *Store) Calls(op string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[op]
}

// FailOn makes every later call of op return err. A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) record(op string) error {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.calls[op]++
	return s.failures[op]
}

// InTx runs fn against a copy of the store. The copy is committed when fn returns nil.
// Transactions run one at a time regardless of lockKey.
func (s *Store) InTx(ctx context.Context, _ string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := s.record("InTx"); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &tx{store: s, state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	if err := s.record("Commit"); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *Store) read(op string, fn func(st *state)) error {
	if err := s.record(op); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
	return nil
}

func (s *Store) FindUser(_ context.Context, id string) (u *models.User, err error) {
	err = s.read("FindUser", func(st *state) { u = st.user(id) })
	return u, err
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (u *models.User, err error) {
	err = s.read("FindUserByEmail", func(st *state) { u = st.userByEmail(email) })
	return u, err
}

func (s *Store) SearchUsersByEmail(_ context.Context, query string, limit int) (users []models.User, err error) {
	err = s.read("SearchUsersByEmail", func(st *state) { users = st.searchUsers(query, limit) })
	return users, err
}

func (s *Store) FindGroup(_ context.Context, id string) (g *models.Group, err error) {
	err = s.read("FindGroup", func(st *state) { g = st.group(id, true) })
	return g, err
}

func (s *Store) GroupsForUser(_ context.Context, userID string) (groups []models.Group, err error) {
	err = s.read("GroupsForUser", func(st *state) { groups = st.groupsForUser(userID) })
	return groups, err
}

func (s *Store) MembersByGroup(_ context.Context, groupID string) (members []models.Member, err error) {
	err = s.read("MembersByGroup", func(st *state) { members = st.membersByGroup(groupID) })
	return members, err
}

func (s *Store) MembersByUsers(_ context.Context, userIDs []string) (members []models.Member, err error) {
	err = s.read("MembersByUsers", func(st *state) { members = st.membersByUsers(userIDs) })
	return members, err
}

func (s *Store) FindExpense(_ context.Context, id string) (e *models.Expense, err error) {
	err = s.read("FindExpense", func(st *state) { e = st.expense(id) })
	return e, err
}

func (s *Store) ExpensesByAuthor(_ context.Context, authorID string) (expenses []models.Expense, err error) {
	err = s.read("ExpensesByAuthor", func(st *state) {
		expenses = st.expensesWhere(func(e models.Expense) bool { return e.AuthorID == authorID })
	})
	return expenses, err
}

func (s *Store) ExpensesByGroup(_ context.Context, groupID string) (expenses []models.Expense, err error) {
	err = s.read("ExpensesByGroup", func(st *state) {
		expenses = st.expensesWhere(func(e models.Expense) bool { return e.GroupID != nil && *e.GroupID == groupID })
	})
	return expenses, err
}

func (s *Store) SplitsByExpense(_ context.Context, expenseID string) (splits []models.Split, err error) {
	err = s.read("SplitsByExpense", func(st *state) { splits = st.splitsByExpense(expenseID) })
	return splits, err
}

func (s *Store) SplitsByUser(_ context.Context, userID string) (splits []models.Split, err error) {
	err = s.read("SplitsByUser", func(st *state) {
		splits = st.resolvedSplitsWhere(func(sp models.Split, _ models.Expense) bool { return sp.UserID == userID })
	})
	return splits, err
}

func (s *Store) SplitsByExpenseAuthor(_ context.Context, authorID string) (splits []models.Split, err error) {
	err = s.read("SplitsByExpenseAuthor", func(st *state) {
		splits = st.resolvedSplitsWhere(func(_ models.Split, e models.Expense) bool { return e.AuthorID == authorID })
	})
	return splits, err
}

// state is one consistent snapshot of all records.
type state struct {
	users    map[string]models.User
	groups   map[string]models.Group
	members  map[string]models.Member
	expenses map[string]models.Expense
	splits   map[string]models.Split
}

func newState() *state {
	return &state{
		users:    make(map[string]models.User),
		groups:   make(map[string]models.Group),
		members:  make(map[string]models.Member),
		expenses: make(map[string]models.Expense),
		splits:   make(map[string]models.Split),
	}
}

// clone copies the maps. Records are stored by value and their slices are
// never modified in place, so a shallow copy is enough.
func (st *state) clone() *state {
	return &state{
		users:    maps.Clone(st.users),
		groups:   maps.Clone(st.groups),
		members:  maps.Clone(st.members),
		expenses: maps.Clone(st.expenses),
		splits:   maps.Clone(st.splits),
	}
}

func (st *state) user(id string) *models.User {
	u, ok := st.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (st *state) userByEmail(email string) *models.User {
	for _, u := range st.users {
		if strings.EqualFold(u.Email, email) {
			return &u
		}
	}
	return nil
}

func (st *state) searchUsers(query string, limit int) []models.User {
	q := strings.ToLower(query)
	var out []models.User
	for _, u := range st.users {
		if strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return strings.Compare(a.Email, b.Email) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (st *state) group(id string, withAuthor bool) *models.Group {
	g, ok := st.groups[id]
	if !ok {
		return nil
	}
	g.Tags = slices.Clone(g.Tags)
	if withAuthor {
		g.Author = st.user(g.AuthorID)
	}
	return &g
}

func (st *state) groupsForUser(userID string) []models.Group {
	var out []models.Group
	for _, m := range st.members {
		if m.UserID != userID || !m.IsActive() {
			continue
		}
		if g := st.group(m.GroupID, true); g != nil {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b models.Group) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (st *state) membersWhere(keep func(models.Member) bool) []models.Member {
	var out []models.Member
	for _, m := range st.members {
		if keep(m) {
			m.User = st.user(m.UserID)
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.Member) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (st *state) membersByGroup(groupID string) []models.Member {
	return st.membersWhere(func(m models.Member) bool { return m.GroupID == groupID })
}

func (st *state) membersByUsers(userIDs []string) []models.Member {
	return st.membersWhere(func(m models.Member) bool { return slices.Contains(userIDs, m.UserID) })
}

// resolveExpense fills Author and Group. Group.Author is resolved only when deep is set.
func (st *state) resolveExpense(e models.Expense, deep bool) models.Expense {
	e.Tags = slices.Clone(e.Tags)
	e.Author = st.user(e.AuthorID)
	if e.GroupID != nil {
		e.Group = st.group(*e.GroupID, deep)
	}
	return e
}

func (st *state) expense(id string) *models.Expense {
	e, ok := st.expenses[id]
	if !ok {
		return nil
	}
	e = st.resolveExpense(e, true)
	return &e
}

func (st *state) expensesWhere(keep func(models.Expense) bool) []models.Expense {
	var out []models.Expense
	for _, e := range st.expenses {
		if keep(e) {
			out = append(out, st.resolveExpense(e, true))
		}
	}
	slices.SortFunc(out, func(a, b models.Expense) int { return b.Timestamp.Compare(a.Timestamp) })
	return out
}

func (st *state) splitsByExpense(expenseID string) []models.Split {
	var out []models.Split
	for _, sp := range st.splits {
		if sp.ExpenseID == expenseID {
			sp.User = st.user(sp.UserID)
			out = append(out, sp)
		}
	}
	sortSplits(out)
	return out
}

func (st *state) resolvedSplitsWhere(keep func(models.Split, models.Expense) bool) []models.Split {
	var out []models.Split
	for _, sp := range st.splits {
		e, ok := st.expenses[sp.ExpenseID]
		if !ok || !keep(sp, e) {
			continue
		}
		resolved := st.resolveExpense(e, false)
		sp.Expense = &resolved
		sp.User = st.user(sp.UserID)
		out = append(out, sp)
	}
	sortSplits(out)
	return out
}

func sortSplits(splits []models.Split) {
	slices.SortFunc(splits, func(a, b models.Split) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// errForeignKey mirrors a foreign key violation in the relational store.
var errForeignKey = errors.New("referenced record does not exist")

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
