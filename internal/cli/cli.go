// Package cli implements the split-ledger command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/subcommands"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// App carries what the commands share. Connect and Migrate are only called by
// commands that need the database.
type App struct {
	Connect func(ctx context.Context) (*ledger.Service, error)
	Migrate func(ctx context.Context) error

	Out io.Writer
	Err io.Writer

	// As is the id of the user running the command.
	As      string
	Version string

	svc *ledger.Service
}

// Register adds every command to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
	c.Register(&versionCmd{app: app}, "")
	c.Register(&migrateCmd{app: app}, "")

	c.Register(&userAddCmd{app: app}, "users")
	c.Register(&inviteCmd{app: app}, "users")

	c.Register(&groupAddCmd{app: app}, "groups")
	c.Register(&memberAddCmd{app: app}, "groups")

	c.Register(&expenseAddCmd{app: app}, "expenses")
	c.Register(&expenseEditCmd{app: app}, "expenses")
	c.Register(&expenseRmCmd{app: app}, "expenses")
	c.Register(&expenseShowCmd{app: app}, "expenses")
	c.Register(&expensesCmd{app: app}, "expenses")
	c.Register(&settleCmd{app: app}, "expenses")
	c.Register(&balanceCmd{app: app}, "expenses")
}

func (a *App) service(ctx context.Context) (*ledger.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	if a.Connect == nil {
		return nil, errors.New("no ledger backend configured")
	}
	svc, err := a.Connect(ctx)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *App) requester() (string, error) {
	if a.As == "" {
		return "", errors.New("-as <user id> is required")
	}
	return a.As, nil
}

func (a *App) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func (a *App) fail(err error) subcommands.ExitStatus {
	if kind := ledger.Kind(err); kind != "" {
		fmt.Fprintf(a.Err, "Error (%s): %v\n", kind, err)
	} else {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}

// ParseSplits parses a split list such as "alice=12.50,bob=7.50".
// Blank entries are skipped, so a blank list yields an empty, non-nil slice.
func ParseSplits(s string) ([]models.SplitInput, error) {
	splits := []models.SplitInput{}
	for entry := range strings.SplitSeq(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, amount, ok := strings.Cut(entry, "=")
		user = strings.TrimSpace(user)
		if !ok || user == "" {
			return nil, fmt.Errorf("%w: split %q is not user=amount", ledger.ErrInvalidInput, entry)
		}
		d, err := ledger.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("split for %s: %w", user, err)
		}
		splits = append(splits, models.SplitInput{UserID: user, Amount: d})
	}
	return splits, nil
}

// parseTags splits a comma separated tag list. Normalization is left to the ledger.
func parseTags(s string) []string {
	tags := []string{}
	for tag := range strings.SplitSeq(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// parseTime accepts a date (2006-01-02) or an RFC 3339 timestamp.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is neither a date nor an RFC 3339 time", ledger.ErrInvalidInput, s)
	}
	return t, nil
}

// setFlags returns the names of the flags given on the command line.
func setFlags(f *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

type versionCmd struct{ app *App }

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the build version" }
func (*versionCmd) Usage() string          { return "version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (c *versionCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	fmt.Fprintln(c.app.Out, c.app.Version)
	return subcommands.ExitSuccess
}

type migrateCmd struct{ app *App }

func (*migrateCmd) Name() string           { return "migrate" }
func (*migrateCmd) Synopsis() string       { return "create or upgrade the database schema" }
func (*migrateCmd) Usage() string          { return "migrate\n" }
func (*migrateCmd) SetFlags(*flag.FlagSet) {}
func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.app.Migrate == nil {
		return c.app.fail(errors.New("no database configured"))
	}
	if err := c.app.Migrate(ctx); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.Out, "Schema is up to date.")
	return subcommands.ExitSuccess
}
