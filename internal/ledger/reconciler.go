package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// Plan is the set of split mutations that turns the stored splits of an
// expense into the desired ones. It is applied in a single transaction.
type Plan struct {
	Create []models.Split
	Update []models.Split
	Delete []models.Split
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// shareFor splits amount into pending and completed. The author never owes
// themselves, so their whole share counts as completed.
func shareFor(userID, authorID string, amount decimal.Decimal) (pending, completed decimal.Decimal) {
	if userID == authorID {
		return decimal.Zero, amount
	}
	return amount, decimal.Zero
}

// Reconcile diffs desired against existing, matching rows by user id.
// Users without a row get one, rows of users no longer present are deleted,
// and remaining rows are overwritten with the new share. Rows whose values
// would not change are left out, so reconciling an unchanged set yields an
// empty plan.
func Reconcile(expenseID, authorID string, existing []models.Split, desired []models.SplitInput) Plan {
	byUser := make(map[string]models.Split, len(existing))
	for _, s := range existing {
		byUser[s.UserID] = s
	}

	var plan Plan
	wanted := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		wanted[d.UserID] = struct{}{}
		pending, completed := shareFor(d.UserID, authorID, d.Amount)

		cur, ok := byUser[d.UserID]
		if !ok {
			plan.Create = append(plan.Create, models.Split{
				ExpenseID: expenseID,
				UserID:    d.UserID,
				Pending:   pending,
				Completed: completed,
			})
			continue
		}
		if cur.Pending.Equal(pending) && cur.Completed.Equal(completed) {
			continue
		}
		cur.Pending = pending
		cur.Completed = completed
		plan.Update = append(plan.Update, cur)
	}

	for _, s := range existing {
		if _, ok := wanted[s.UserID]; !ok {
			plan.Delete = append(plan.Delete, s)
		}
	}
	return plan
}

// apply writes the plan through tx.
func (p Plan) apply(ctx context.Context, tx Tx) error {
	if len(p.Delete) > 0 {
		ids := make([]string, len(p.Delete))
		for i, s := range p.Delete {
			ids[i] = s.ID
		}
		if err := tx.DeleteSplits(ctx, ids); err != nil {
			return storeErr(err)
		}
	}
	if len(p.Update) > 0 {
		if err := tx.UpdateSplits(ctx, p.Update); err != nil {
			return storeErr(err)
		}
	}
	if len(p.Create) > 0 {
		if err := tx.CreateSplits(ctx, p.Create); err != nil {
			return storeErr(err)
		}
	}
	return nil
}
