package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/split-ledger/internal/cache"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// CreateExpense validates and records a new expense with its optional splits.
// The stored author is always requesterID. splits == nil records an unsplit expense.
func (s *Service) CreateExpense(
	ctx context.Context,
	in ExpenseInput,
	requesterID string,
	splits []models.SplitInput,
) (result *models.Expense, err error) {
	ctx, span := s.start(ctx, "CreateExpense", attribute.Int("splits", len(splits)))
	defer func() { s.end(ctx, span, "CreateExpense", err) }()

	in.Tags, err = normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.ExpenseTypePaid
	}

	id := uuid.NewString()
	err = s.inTx(ctx, expenseLockKey(id), func(ctx context.Context, tx Tx) error {
		if err := ValidateCreate(ctx, tx, in, requesterID, splits); err != nil {
			return err
		}

		expense := &models.Expense{
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
			Amount:      in.Amount,
			AuthorID:    requesterID,
			Timestamp:   in.Timestamp,
			GroupID:     in.GroupID,
			Tags:        in.Tags,
			Icon:        in.Icon,
			Type:        in.Type,
			Method:      in.Method,
		}
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return storeErr(err)
		}

		if splits != nil {
			plan := Reconcile(id, requesterID, nil, splits)
			if err := plan.apply(ctx, tx); err != nil {
				return err
			}
			s.recordPlan(ctx, plan)
		}

		loaded, err := tx.FindExpense(ctx, id)
		result = loaded
		return storeErr(err)
	})
	if err != nil {
		logger.Log.Debug().Err(err).Str("user", logger.HashUserID(requesterID)).Msg("Expense rejected")
		return nil, err
	}

	s.cache.Invalidate(cache.ExpenseKey(id))
	s.committed(ctx, "CreateExpense")
	logger.Log.Info().
		Str("expense_id", id).
		Str("user", logger.HashUserID(requesterID)).
		Int("splits", len(splits)).
		Msg("Expense created")
	return result, nil
}

// UpdateExpense applies patch to an expense the requester authored. When splits is
// non-nil the stored splits are reconciled to it in the same transaction.
func (s *Service) UpdateExpense(
	ctx context.Context,
	expenseID, requesterID string,
	patch ExpensePatch,
	splits []models.SplitInput,
) (result *models.Expense, err error) {
	ctx, span := s.start(ctx, "UpdateExpense", attribute.String("expense.id", expenseID))
	defer func() { s.end(ctx, span, "UpdateExpense", err) }()

	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		patch.Tags = &tags
	}

	err = s.inTx(ctx, expenseLockKey(expenseID), func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindExpense(ctx, expenseID)
		if err != nil {
			return storeErr(err)
		}
		if existing == nil {
			return notFound("expense %s", expenseID)
		}

		updated, err := ValidateUpdate(ctx, tx, existing, patch, requesterID, splits)
		if err != nil {
			return err
		}
		if err := tx.UpdateExpense(ctx, updated); err != nil {
			return storeErr(err)
		}

		if splits != nil {
			current, err := tx.SplitsByExpense(ctx, expenseID)
			if err != nil {
				return storeErr(err)
			}
			plan := Reconcile(expenseID, updated.AuthorID, current, splits)
			if err := plan.apply(ctx, tx); err != nil {
				return err
			}
			s.recordPlan(ctx, plan)
		}

		result, err = tx.FindExpense(ctx, expenseID)
		return storeErr(err)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.ExpenseKey(expenseID))
	s.committed(ctx, "UpdateExpense")
	logger.Log.Info().
		Str("expense_id", expenseID).
		Str("user", logger.HashUserID(requesterID)).
		Bool("splits_replaced", splits != nil).
		Msg("Expense updated")
	return result, nil
}

// DeleteExpense removes an expense the requester authored, with all its splits.
func (s *Service) DeleteExpense(ctx context.Context, expenseID, requesterID string) (err error) {
	ctx, span := s.start(ctx, "DeleteExpense", attribute.String("expense.id", expenseID))
	defer func() { s.end(ctx, span, "DeleteExpense", err) }()

	err = s.inTx(ctx, expenseLockKey(expenseID), func(ctx context.Context, tx Tx) error {
		existing, err := tx.FindExpense(ctx, expenseID)
		if err != nil {
			return storeErr(err)
		}
		if existing == nil {
			return notFound("expense %s", expenseID)
		}
		if existing.AuthorID != requesterID {
			return unauthorized("only the author can delete expense %s", expenseID)
		}
		if err := tx.DeleteSplitsByExpense(ctx, expenseID); err != nil {
			return storeErr(err)
		}
		return storeErr(tx.DeleteExpense(ctx, expenseID))
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(cache.ExpenseKey(expenseID))
	s.committed(ctx, "DeleteExpense")
	logger.Log.Info().
		Str("expense_id", expenseID).
		Str("user", logger.HashUserID(requesterID)).
		Msg("Expense deleted")
	return nil
}

// GetExpenseByID returns the expense with author and group resolved, or nil when it
// does not exist. The cache holds the bare row; author and group come from their own
// entries on every read. Tags and the resolved users and group are shared and must
// not be modified.
func (s *Service) GetExpenseByID(ctx context.Context, expenseID string) (result *models.Expense, err error) {
	ctx, span := s.start(ctx, "GetExpenseByID", attribute.String("expense.id", expenseID))
	defer func() { s.end(ctx, span, "GetExpenseByID", err) }()

	row, err := cache.Fetch(ctx, s.cache, cache.ExpenseKey(expenseID), func(ctx context.Context) (*models.Expense, error) {
		e, err := s.store.FindExpense(ctx, expenseID)
		if err != nil || e == nil {
			return nil, storeErr(err)
		}
		bare := *e
		bare.Author, bare.Group = nil, nil
		return &bare, nil
	})
	if err != nil || row == nil {
		return nil, err
	}

	expense := *row
	if expense.Author, err = s.GetUserByID(ctx, expense.AuthorID); err != nil {
		return nil, err
	}
	if expense.GroupID != nil {
		if expense.Group, err = s.GetGroupByID(ctx, *expense.GroupID); err != nil {
			return nil, err
		}
	}
	return &expense, nil
}

// GetUserExpenses lists the expenses a user authored, newest first.
func (s *Service) GetUserExpenses(ctx context.Context, userID string) (result []models.Expense, err error) {
	ctx, span := s.start(ctx, "GetUserExpenses")
	defer func() { s.end(ctx, span, "GetUserExpenses", err) }()

	expenses, err := s.store.ExpensesByAuthor(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

// GetGroupExpenses lists a group's expenses, newest first. Only members may list them.
func (s *Service) GetGroupExpenses(ctx context.Context, groupID, requesterID string) (result []models.Expense, err error) {
	ctx, span := s.start(ctx, "GetGroupExpenses", attribute.String("group.id", groupID))
	defer func() { s.end(ctx, span, "GetGroupExpenses", err) }()

	if _, err := groupMembersFor(ctx, s.store, groupID, requesterID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr(err)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

// GetExpenseSplits lists the splits of an expense with their users resolved.
func (s *Service) GetExpenseSplits(ctx context.Context, expenseID string) (result []models.Split, err error) {
	ctx, span := s.start(ctx, "GetExpenseSplits", attribute.String("expense.id", expenseID))
	defer func() { s.end(ctx, span, "GetExpenseSplits", err) }()

	splits, err := s.store.SplitsByExpense(ctx, expenseID)
	if err != nil {
		return nil, storeErr(err)
	}
	if splits == nil {
		splits = []models.Split{}
	}
	return splits, nil
}

// SettleSplit moves amount of userID's share of an expense from pending to completed.
// Only the split's user or the expense author may settle it.
func (s *Service) SettleSplit(
	ctx context.Context,
	expenseID, userID, requesterID string,
	amount decimal.Decimal,
) (result *models.Split, err error) {
	ctx, span := s.start(ctx, "SettleSplit", attribute.String("expense.id", expenseID))
	defer func() { s.end(ctx, span, "SettleSplit", err) }()

	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, expenseLockKey(expenseID), func(ctx context.Context, tx Tx) error {
		expense, err := tx.FindExpense(ctx, expenseID)
		if err != nil {
			return storeErr(err)
		}
		if expense == nil {
			return notFound("expense %s", expenseID)
		}
		if requesterID != userID && requesterID != expense.AuthorID {
			return unauthorized("cannot settle another user's split")
		}

		splits, err := tx.SplitsByExpense(ctx, expenseID)
		if err != nil {
			return storeErr(err)
		}
		var split *models.Split
		for i := range splits {
			if splits[i].UserID == userID {
				split = &splits[i]
				break
			}
		}
		if split == nil {
			return notFound("split of %s on expense %s", userID, expenseID)
		}
		if amount.GreaterThan(split.Pending) {
			return invalidSplit("settling %s exceeds pending %s", amount.String(), split.Pending.String())
		}

		split.Pending = split.Pending.Sub(amount)
		split.Completed = split.Completed.Add(amount)
		if err := tx.UpdateSplits(ctx, []models.Split{*split}); err != nil {
			return storeErr(err)
		}
		result = split
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "SettleSplit")
	logger.Log.Info().
		Str("expense_id", expenseID).
		Str("user", logger.HashUserID(userID)).
		Str("amount", amount.String()).
		Msg("Split settled")
	return result, nil
}
