package ledger_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"pgregory.net/rapid"
)

// applyPlan returns existing with plan applied, the way a store would.
func applyPlan(existing []models.Split, plan ledger.Plan) []models.Split {
	byID := make(map[string]models.Split, len(existing))
	order := make([]string, 0, len(existing))
	for _, s := range existing {
		byID[s.ID] = s
		order = append(order, s.ID)
	}
	for _, s := range plan.Delete {
		delete(byID, s.ID)
	}
	for _, s := range plan.Update {
		byID[s.ID] = s
	}
	for i, s := range plan.Create {
		s.ID = fmt.Sprintf("new-%d-%s", i, s.UserID)
		byID[s.ID] = s
		order = append(order, s.ID)
	}
	var out []models.Split
	for _, id := range order {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func TestReconcile(t *testing.T) {
	const expenseID, author = "e1", "alice"

	existing := []models.Split{
		{ID: "s-alice", ExpenseID: expenseID, UserID: "alice", Pending: dec("0"), Completed: dec("50")},
		{ID: "s-bob", ExpenseID: expenseID, UserID: "bob", Pending: dec("50"), Completed: dec("0")},
	}

	t.Run("creates every row for a new expense", func(t *testing.T) {
		plan := ledger.Reconcile(expenseID, author, nil, []models.SplitInput{
			split("alice", "60"), split("bob", "40"),
		})
		require.Empty(t, plan.Update)
		require.Empty(t, plan.Delete)
		require.Len(t, plan.Create, 2)

		require.Equal(t, "alice", plan.Create[0].UserID)
		require.True(t, plan.Create[0].Pending.IsZero())
		require.True(t, plan.Create[0].Completed.Equal(dec("60")))
		require.Equal(t, "bob", plan.Create[1].UserID)
		require.True(t, plan.Create[1].Pending.Equal(dec("40")))
		require.True(t, plan.Create[1].Completed.IsZero())
		require.Equal(t, expenseID, plan.Create[1].ExpenseID)
	})

	t.Run("unchanged set yields an empty plan", func(t *testing.T) {
		plan := ledger.Reconcile(expenseID, author, existing, []models.SplitInput{
			split("bob", "50.00"), split("alice", "50"),
		})
		require.True(t, plan.Empty())
	})

	t.Run("adds, updates and removes by user", func(t *testing.T) {
		plan := ledger.Reconcile(expenseID, author, existing, []models.SplitInput{
			split("alice", "40"), split("carol", "60"),
		})

		require.Len(t, plan.Create, 1)
		require.Equal(t, "carol", plan.Create[0].UserID)
		require.True(t, plan.Create[0].Pending.Equal(dec("60")))

		require.Len(t, plan.Update, 1)
		require.Equal(t, "s-alice", plan.Update[0].ID)
		require.True(t, plan.Update[0].Completed.Equal(dec("40")))

		require.Len(t, plan.Delete, 1)
		require.Equal(t, "s-bob", plan.Delete[0].ID)
	})

	t.Run("replaces settled progress instead of adding to it", func(t *testing.T) {
		settled := []models.Split{
			{ID: "s-bob", ExpenseID: expenseID, UserID: "bob", Pending: dec("20"), Completed: dec("30")},
		}
		plan := ledger.Reconcile(expenseID, author, settled, []models.SplitInput{split("bob", "50")})
		require.Len(t, plan.Update, 1)
		require.True(t, plan.Update[0].Pending.Equal(dec("50")))
		require.True(t, plan.Update[0].Completed.IsZero())
	})

	t.Run("empty desired set deletes everything", func(t *testing.T) {
		plan := ledger.Reconcile(expenseID, author, existing, []models.SplitInput{})
		require.Len(t, plan.Delete, 2)
		require.Empty(t, plan.Create)
		require.Empty(t, plan.Update)
	})
}

var users = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

// splitSet draws distinct users with positive cent amounts.
func splitSet(t *rapid.T, label string) []models.SplitInput {
	chosen := rapid.SliceOfNDistinct(rapid.SampledFrom(users), 1, len(users), rapid.ID[string]).Draw(t, label)
	out := make([]models.SplitInput, len(chosen))
	for i, u := range chosen {
		cents := rapid.Int64Range(1, 1_000_000).Draw(t, label+"-"+u)
		out[i] = models.SplitInput{UserID: u, Amount: decimal.New(cents, -2)}
	}
	return out
}

func sumInputs(in []models.SplitInput) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range in {
		sum = sum.Add(s.Amount)
	}
	return sum
}

func TestReconcile_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		author := rapid.SampledFrom(users).Draw(t, "author")
		first := splitSet(t, "first")
		second := splitSet(t, "second")

		stored := applyPlan(nil, ledger.Reconcile("e", author, nil, first))
		stored = applyPlan(stored, ledger.Reconcile("e", author, stored, second))

		total := decimal.Zero
		seen := map[string]bool{}
		for _, s := range stored {
			if seen[s.UserID] {
				t.Fatalf("user %s has two rows", s.UserID)
			}
			seen[s.UserID] = true
			if s.Pending.IsNegative() || s.Completed.IsNegative() {
				t.Fatalf("negative split %v", s)
			}
			if s.UserID == author && !s.Pending.IsZero() {
				t.Fatalf("author owes themselves %s", s.Pending)
			}
			total = total.Add(s.Share())
		}
		if !total.Equal(sumInputs(second)) {
			t.Fatalf("stored shares add up to %s, want %s", total, sumInputs(second))
		}
		if len(stored) != len(second) {
			t.Fatalf("got %d rows, want %d", len(stored), len(second))
		}

		if again := ledger.Reconcile("e", author, stored, second); !again.Empty() {
			t.Fatalf("reapplying the same set produced %+v", again)
		}
	})
}
