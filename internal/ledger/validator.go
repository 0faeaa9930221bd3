package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// maxTagsPerExpense is the maximum number of tags on one expense.
const maxTagsPerExpense = 10

// ExpenseInput is the body of a new expense.
type ExpenseInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	// AuthorID must resolve to a user. The stored author is always the requester.
	AuthorID  string
	Timestamp time.Time
	GroupID   *string
	Tags      []string
	Icon      string
	Type      models.ExpenseType
	Method    string
}

// ExpensePatch lists the fields to change on an expense. Nil fields are left as they are.
// The author cannot be changed.
type ExpensePatch struct {
	Title       *string
	Description *string
	Amount      *decimal.Decimal
	Timestamp   *time.Time
	// Group moves the expense to another group; an empty string makes it personal.
	Group  *string
	Tags   *[]string
	Icon   *string
	Type   *models.ExpenseType
	Method *string
}

// ValidateCreate checks a new expense and its optional splits against the store.
// splits == nil means the expense is not split.
func ValidateCreate(ctx context.Context, r Reader, in ExpenseInput, requesterID string, splits []models.SplitInput) error {
	author, err := r.FindUser(ctx, in.AuthorID)
	if err != nil {
		return storeErr(err)
	}
	if author == nil {
		return notFound("user %s", in.AuthorID)
	}

	if in.GroupID == nil && splits == nil && in.AuthorID != requesterID {
		return unauthorized("personal expenses can only be recorded by their author")
	}

	if err := checkAmount(in.Amount); err != nil {
		return err
	}
	if err := checkFields(in.Title, in.Type); err != nil {
		return err
	}

	var members []models.Member
	if in.GroupID != nil {
		members, err = groupMembersFor(ctx, r, *in.GroupID, requesterID)
		if err != nil {
			return err
		}
		if splits == nil {
			return invalidInput("splits are required for group expenses")
		}
	}

	if splits != nil {
		return validateSplits(ctx, r, in.Amount, in.GroupID != nil, members, splits)
	}
	return nil
}

// ValidateUpdate checks a patch against an existing expense and returns the expense
// as it will be stored. splits == nil leaves the existing splits untouched.
func ValidateUpdate(
	ctx context.Context,
	r Reader,
	existing *models.Expense,
	patch ExpensePatch,
	requesterID string,
	splits []models.SplitInput,
) (*models.Expense, error) {
	if existing == nil {
		return nil, notFound("expense")
	}
	if existing.AuthorID != requesterID {
		return nil, unauthorized("only the author can change expense %s", existing.ID)
	}

	updated := applyPatch(existing, patch)
	if err := checkAmount(updated.Amount); err != nil {
		return nil, err
	}
	if err := checkFields(updated.Title, updated.Type); err != nil {
		return nil, err
	}

	var members []models.Member
	if updated.GroupID != nil {
		var err error
		members, err = groupMembersFor(ctx, r, *updated.GroupID, requesterID)
		if err != nil {
			return nil, err
		}
	}

	if splits != nil {
		if err := validateSplits(ctx, r, updated.Amount, updated.GroupID != nil, members, splits); err != nil {
			return nil, err
		}
		return updated, nil
	}

	current, err := r.SplitsByExpense(ctx, existing.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	if updated.GroupID != nil && len(current) == 0 {
		return nil, invalidInput("splits are required for group expenses")
	}
	amountChanged := !updated.Amount.Equal(existing.Amount)
	groupChanged := groupOf(updated) != groupOf(existing)
	if len(current) > 0 && (amountChanged || groupChanged) {
		return nil, invalidInput("changing the amount or group of a split expense requires a new split set")
	}
	return updated, nil
}

// groupMembersFor resolves a group's members and checks the requester is one of them.
func groupMembersFor(ctx context.Context, r Reader, groupID, requesterID string) ([]models.Member, error) {
	group, err := r.FindGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}
	if group == nil {
		return nil, notFound("group %s", groupID)
	}
	members, err := r.MembersByGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(members) == 0 {
		return nil, notFound("members of group %s", groupID)
	}
	if !hasActiveMember(members, requesterID) {
		return nil, unauthorized("not a member of group %s", groupID)
	}
	return members, nil
}

// validateSplits checks that splits add up to amount and name members only.
// For a group expense the members are those of the group; otherwise any
// group membership will do.
func validateSplits(
	ctx context.Context,
	r Reader,
	amount decimal.Decimal,
	grouped bool,
	groupMembers []models.Member,
	splits []models.SplitInput,
) error {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	if !sum.Equal(amount) {
		return invalidSplit("splits add up to %s, expense amount is %s", sum.String(), amount.String())
	}

	userIDs := make([]string, 0, len(splits))
	seen := make(map[string]struct{}, len(splits))
	for _, s := range splits {
		if _, dup := seen[s.UserID]; dup {
			return invalidInput("user %s appears twice in splits", s.UserID)
		}
		seen[s.UserID] = struct{}{}
		userIDs = append(userIDs, s.UserID)
	}

	members := groupMembers
	if !grouped {
		var err error
		members, err = r.MembersByUsers(ctx, userIDs)
		if err != nil {
			return storeErr(err)
		}
	}
	for _, id := range userIDs {
		if !hasActiveMember(members, id) {
			return notFound("member %s", id)
		}
	}

	for _, s := range splits {
		if !validMoney(s.Amount) {
			return invalidSplit("split for %s is %s", s.UserID, s.Amount.String())
		}
	}
	return nil
}

func hasActiveMember(members []models.Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID && m.IsActive() {
			return true
		}
	}
	return false
}

func checkFields(title string, typ models.ExpenseType) error {
	if strings.TrimSpace(title) == "" {
		return invalidInput("title is required")
	}
	if typ != "" && !typ.IsValid() {
		return invalidInput("unknown expense type %q", typ)
	}
	return nil
}

// normalizeTags lowercases, trims and de-duplicates tag names, keeping order.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		if len(t) > models.MaxTagNameLength {
			return nil, invalidInput("tag %q is longer than %d characters", t, models.MaxTagNameLength)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxTagsPerExpense {
		return nil, invalidInput("at most %d tags per expense", maxTagsPerExpense)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func groupOf(e *models.Expense) string {
	if e.GroupID == nil {
		return ""
	}
	return *e.GroupID
}

func applyPatch(existing *models.Expense, p ExpensePatch) *models.Expense {
	e := *existing
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Timestamp != nil {
		e.Timestamp = *p.Timestamp
	}
	if p.Group != nil {
		if *p.Group == "" {
			e.GroupID = nil
		} else {
			id := *p.Group
			e.GroupID = &id
		}
		if groupOf(&e) != groupOf(existing) {
			e.Group = nil
		}
	}
	if p.Tags != nil {
		e.Tags = *p.Tags
	}
	if p.Icon != nil {
		e.Icon = *p.Icon
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Method != nil {
		e.Method = *p.Method
	}
	return &e
}
