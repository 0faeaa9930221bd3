package ledger_test

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"gitlab.com/yelinaung/split-ledger/internal/store/memory"
)

func TestMain(m *testing.M) {
	logger.InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	logger.SetLevel("error")
	os.Exit(m.Run())
}

// world holds a seeded store: alice and bob share group trip, carol is alone in
// group solo, and dave belongs to no group.
type world struct {
	store *memory.Store
	alice models.User
	bob   models.User
	carol models.User
	dave  models.User
	trip  models.Group
	solo  models.Group
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{store: memory.New()}
	ctx := context.Background()

	err := w.store.InTx(ctx, "seed", func(ctx context.Context, tx ledger.Tx) error {
		w.alice = models.User{Name: "Alice", Email: "alice@example.com"}
		w.bob = models.User{Name: "Bob", Email: "bob@example.com"}
		w.carol = models.User{Name: "Carol", Email: "carol@example.com"}
		w.dave = models.User{Name: "Dave", Email: "dave@example.com"}
		for _, u := range []*models.User{&w.alice, &w.bob, &w.carol, &w.dave} {
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
		}

		w.trip = models.Group{Name: "Trip", AuthorID: w.alice.ID}
		if err := tx.CreateGroup(ctx, &w.trip); err != nil {
			return err
		}
		w.solo = models.Group{Name: "Solo", AuthorID: w.carol.ID}
		if err := tx.CreateGroup(ctx, &w.solo); err != nil {
			return err
		}
		for _, m := range []models.Member{
			{UserID: w.alice.ID, GroupID: w.trip.ID, Role: models.MemberRoleOwner},
			{UserID: w.bob.ID, GroupID: w.trip.ID},
			{UserID: w.carol.ID, GroupID: w.solo.ID, Role: models.MemberRoleOwner},
		} {
			if err := tx.CreateMember(ctx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return w
}

func (w *world) service(t *testing.T, opts ...ledger.Option) *ledger.Service {
	t.Helper()
	svc, err := ledger.NewService(w.store, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Wait)
	return svc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func split(userID, amount string) models.SplitInput {
	return models.SplitInput{UserID: userID, Amount: dec(amount)}
}

// shares maps user id to pending and completed of an expense's splits.
func shares(t *testing.T, svc *ledger.Service, expenseID string) map[string][2]string {
	t.Helper()
	splits, err := svc.GetExpenseSplits(context.Background(), expenseID)
	require.NoError(t, err)
	out := make(map[string][2]string, len(splits))
	for _, s := range splits {
		out[s.UserID] = [2]string{s.Pending.StringFixed(2), s.Completed.StringFixed(2)}
	}
	return out
}
