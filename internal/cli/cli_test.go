package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
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

type harness struct {
	svc   *ledger.Service
	alice *models.User
	bob   *models.User
	trip  *models.Group
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	svc, err := ledger.NewService(memory.New())
	require.NoError(t, err)
	t.Cleanup(svc.Wait)

	h := &harness{svc: svc}
	h.alice, _, err = svc.FindOrCreateUser(ctx, models.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	h.bob, _, err = svc.FindOrCreateUser(ctx, models.User{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	h.trip, err = svc.CreateGroup(ctx, h.alice.ID, ledger.GroupInput{Name: "Trip"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, h.trip.ID, h.alice.ID, h.bob.ID, "")
	require.NoError(t, err)
	return h
}

// run executes one command line and returns its exit status, stdout and stderr.
func (h *harness) run(t *testing.T, args ...string) (subcommands.ExitStatus, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &App{
		Connect: func(context.Context) (*ledger.Service, error) { return h.svc, nil },
		Out:     &out,
		Err:     &errOut,
		Version: "split-ledger test",
	}

	top := flag.NewFlagSet("split-ledger", flag.ContinueOnError)
	top.SetOutput(io.Discard)
	top.StringVar(&app.As, "as", "", "")
	cmdr := subcommands.NewCommander(top, "split-ledger")
	cmdr.Output = io.Discard
	cmdr.Error = io.Discard
	Register(cmdr, app)

	require.NoError(t, top.Parse(args))
	status := cmdr.Execute(context.Background())
	return status, out.String(), errOut.String()
}

func TestParseSplits(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr error
	}{
		{name: "two users", input: "alice=12.50,bob=7.5", want: map[string]string{"alice": "12.50", "bob": "7.50"}},
		{name: "spaces and trailing comma", input: " alice = 1 , ", want: map[string]string{"alice": "1.00"}},
		{name: "blank", input: "  ", want: map[string]string{}},
		{name: "missing amount", input: "alice", wantErr: ledger.ErrInvalidInput},
		{name: "missing user", input: "=5", wantErr: ledger.ErrInvalidInput},
		{name: "bad amount", input: "alice=lots", wantErr: ledger.ErrInvalidAmount},
		{name: "empty amount", input: "alice=", wantErr: ledger.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := ParseSplits(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, splits)

			got := make(map[string]string, len(splits))
			for _, s := range splits {
				got[s.UserID] = s.Amount.StringFixed(2)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func FuzzParseSplits(f *testing.F) {
	f.Add("alice=12.50,bob=7.50")
	f.Add("a=1,,b=2,")
	f.Add("=")
	f.Add("x==1")
	f.Add("u=1e3")

	f.Fuzz(func(t *testing.T, input string) {
		splits, err := ParseSplits(input)
		if err != nil {
			return
		}
		require.LessOrEqual(t, len(splits), strings.Count(input, ",")+1)
		for _, s := range splits {
			require.NotEmpty(t, s.UserID)
			require.Equal(t, strings.TrimSpace(s.UserID), s.UserID)
			require.NotContains(t, s.UserID, ",")
			require.NotContains(t, s.UserID, "=")
		}
	})
}

func TestParseTime(t *testing.T) {
	t.Run("date", func(t *testing.T) {
		got, err := parseTime("2024-03-01")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("rfc3339", func(t *testing.T) {
		got, err := parseTime("2024-03-01T10:30:00+08:00")
		require.NoError(t, err)
		require.True(t, got.Equal(time.Date(2024, 3, 1, 2, 30, 0, 0, time.UTC)))
	})

	t.Run("rejects anything else", func(t *testing.T) {
		_, err := parseTime("yesterday")
		require.ErrorIs(t, err, ledger.ErrInvalidInput)
	})
}

func TestParseTags(t *testing.T) {
	require.Equal(t, []string{"food", "trip"}, parseTags(" food, ,trip,"))
	require.Empty(t, parseTags(""))
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("version", func(t *testing.T) {
		h := newHarness(t)
		status, out, _ := h.run(t, "version")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Equal(t, "split-ledger test\n", out)
	})

	t.Run("user-add reports existing users", func(t *testing.T) {
		h := newHarness(t)

		status, out, _ := h.run(t, "user-add", "-email", "carol@example.com", "-name", "Carol")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "Created user")

		status, out, _ = h.run(t, "user-add", "-email", "ALICE@example.com")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, h.alice.ID)
		require.Contains(t, out, "already uses")
	})

	t.Run("requester is required", func(t *testing.T) {
		h := newHarness(t)
		status, _, errOut := h.run(t, "expenses")
		require.Equal(t, subcommands.ExitUsageError, status)
		require.Contains(t, errOut, "-as")
	})

	t.Run("group expense lifecycle", func(t *testing.T) {
		h := newHarness(t)

		status, out, errOut := h.run(t, "-as", h.alice.ID, "expense-add",
			"-title", "Dinner", "-amount", "30", "-group", h.trip.ID, "-at", "2024-03-01",
			"-split", h.alice.ID+"=10,"+h.bob.ID+"=20")
		require.Equal(t, subcommands.ExitSuccess, status, errOut)
		require.Contains(t, out, "Dinner 30.00")

		expenses, err := h.svc.GetUserExpenses(ctx, h.alice.ID)
		require.NoError(t, err)
		require.Len(t, expenses, 1)
		id := expenses[0].ID
		require.True(t, expenses[0].Timestamp.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

		status, out, _ = h.run(t, "expense-show", "-id", id)
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "group:  Trip")
		require.Contains(t, out, "Bob")

		status, out, _ = h.run(t, "-as", h.bob.ID, "expenses", "-group", h.trip.ID)
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, id)

		status, out, _ = h.run(t, "-as", h.bob.ID, "balance")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "Total you owe:     20.00")

		status, out, _ = h.run(t, "-as", h.bob.ID, "settle", "-expense", id, "-amount", "5")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "15.00 pending, 5.00 completed")

		status, out, _ = h.run(t, "-as", h.alice.ID, "balance")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "Total owed to you: 15.00")

		status, _, _ = h.run(t, "-as", h.alice.ID, "expense-edit", "-id", id, "-title", "Late dinner")
		require.Equal(t, subcommands.ExitSuccess, status)
		got, err := h.svc.GetExpenseByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "Late dinner", got.Title)
		require.Equal(t, "30", got.Amount.String())

		status, _, errOut = h.run(t, "-as", h.bob.ID, "expense-rm", "-id", id)
		require.Equal(t, subcommands.ExitFailure, status)
		require.Contains(t, errOut, "Unauthorized")

		status, _, _ = h.run(t, "-as", h.alice.ID, "expense-rm", "-id", id)
		require.Equal(t, subcommands.ExitSuccess, status)

		status, _, errOut = h.run(t, "expense-show", "-id", id)
		require.Equal(t, subcommands.ExitFailure, status)
		require.Contains(t, errOut, "NotFound")
	})

	t.Run("split mismatch is reported", func(t *testing.T) {
		h := newHarness(t)
		status, _, errOut := h.run(t, "-as", h.alice.ID, "expense-add",
			"-title", "Taxi", "-amount", "30", "-group", h.trip.ID,
			"-split", h.alice.ID+"=10,"+h.bob.ID+"=10")
		require.Equal(t, subcommands.ExitFailure, status)
		require.Contains(t, errOut, "InvalidSplitAmount")

		expenses, err := h.svc.GetUserExpenses(ctx, h.alice.ID)
		require.NoError(t, err)
		require.Empty(t, expenses)
	})

	t.Run("personal expenses list", func(t *testing.T) {
		h := newHarness(t)
		status, out, _ := h.run(t, "-as", h.bob.ID, "expenses")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Equal(t, "No expenses.\n", out)

		status, _, _ = h.run(t, "-as", h.bob.ID, "expense-add", "-title", "Coffee", "-amount", "4.20", "-tags", "food")
		require.Equal(t, subcommands.ExitSuccess, status)

		status, out, _ = h.run(t, "-as", h.bob.ID, "expenses")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "Coffee")
		require.Contains(t, out, "4.20")
	})

	t.Run("groups and members", func(t *testing.T) {
		h := newHarness(t)
		carol, _, err := h.svc.FindOrCreateUser(ctx, models.User{Name: "Carol", Email: "carol@example.com"})
		require.NoError(t, err)

		status, out, _ := h.run(t, "-as", carol.ID, "group-add", "-name", "Flat", "-tags", "home")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "Created group")

		status, _, errOut := h.run(t, "-as", h.bob.ID, "member-add", "-group", h.trip.ID, "-user", carol.ID)
		require.Equal(t, subcommands.ExitFailure, status)
		require.Contains(t, errOut, "Unauthorized")

		status, out, _ = h.run(t, "-as", h.alice.ID, "member-add", "-group", h.trip.ID, "-user", carol.ID, "-role", "admin")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "as ADMIN")

		status, _, _ = h.run(t, "-as", h.alice.ID, "member-add", "-group", h.trip.ID, "-user", carol.ID, "-role", "boss")
		require.Equal(t, subcommands.ExitUsageError, status)
	})

	t.Run("invite", func(t *testing.T) {
		h := newHarness(t)
		status, out, _ := h.run(t, "-as", h.alice.ID, "invite", "-email", "dave@example.com")
		require.Equal(t, subcommands.ExitSuccess, status)
		require.Contains(t, out, "Invited dave@example.com")

		status, _, errOut := h.run(t, "-as", h.alice.ID, "invite", "-email", "dave@example.com")
		require.Equal(t, subcommands.ExitFailure, status)
		require.Contains(t, errOut, "Conflict")
	})
}

func TestMigrate(t *testing.T) {
	run := func(migrate func(context.Context) error) (subcommands.ExitStatus, string) {
		var out bytes.Buffer
		app := &App{Migrate: migrate, Out: &out, Err: io.Discard}
		top := flag.NewFlagSet("split-ledger", flag.ContinueOnError)
		cmdr := subcommands.NewCommander(top, "split-ledger")
		cmdr.Error = io.Discard
		Register(cmdr, app)
		require.NoError(t, top.Parse([]string{"migrate"}))
		return cmdr.Execute(context.Background()), out.String()
	}

	status, out := run(func(context.Context) error { return nil })
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "up to date")

	status, _ = run(func(context.Context) error { return errors.New("connection refused") })
	require.Equal(t, subcommands.ExitFailure, status)

	status, _ = run(nil)
	require.Equal(t, subcommands.ExitFailure, status)
}

func TestApp_ConnectsOnce(t *testing.T) {
	calls := 0
	svc, err := ledger.NewService(memory.New())
	require.NoError(t, err)
	app := &App{Connect: func(context.Context) (*ledger.Service, error) {
		calls++
		return svc, nil
	}}

	for range 3 {
		got, err := app.service(context.Background())
		require.NoError(t, err)
		require.Same(t, svc, got)
	}
	require.Equal(t, 1, calls)
}
