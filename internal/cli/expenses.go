package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// expenseFlags are shared by expense-add and expense-edit.
type expenseFlags struct {
	title  string
	desc   string
	amount string
	group  string
	tags   string
	kind   string
	method string
	icon   string
	at     string
	splits string
}

func (e *expenseFlags) register(f *flag.FlagSet) {
	f.StringVar(&e.title, "title", "", "Expense title")
	f.StringVar(&e.desc, "desc", "", "Description")
	f.StringVar(&e.amount, "amount", "", "Amount, e.g. 12.50")
	f.StringVar(&e.group, "group", "", "Group id; empty for a personal expense")
	f.StringVar(&e.tags, "tags", "", "Comma separated tags")
	f.StringVar(&e.kind, "type", "", "PAID, RECEIVED, CASHBACK or SELF")
	f.StringVar(&e.method, "method", "", "Payment method")
	f.StringVar(&e.icon, "icon", "", "Icon")
	f.StringVar(&e.at, "at", "", "When it happened: 2006-01-02 or RFC 3339")
	f.StringVar(&e.splits, "split", "", "Shares as user=amount,user=amount")
}

type expenseAddCmd struct {
	app *App
	expenseFlags
}

func (*expenseAddCmd) Name() string     { return "expense-add" }
func (*expenseAddCmd) Synopsis() string { return "record an expense, optionally split between users" }
func (*expenseAddCmd) Usage() string {
	return `expense-add -as <user id> -title <title> -amount <amount> [-group <group id>] [-split user=amount,...]

  Records an expense paid by the current user. Group expenses need a split
  that adds up to the amount; the payer's own share is settled on creation.
`
}

func (c *expenseAddCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *expenseAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if c.title == "" || c.amount == "" {
		return c.app.usage("-title and -amount are required")
	}

	amount, err := ledger.ParseAmount(c.amount)
	if err != nil {
		return c.app.fail(err)
	}
	in := ledger.ExpenseInput{
		Title:       c.title,
		Description: c.desc,
		Amount:      amount,
		AuthorID:    requester,
		Timestamp:   time.Now().UTC(),
		Tags:        parseTags(c.tags),
		Icon:        c.icon,
		Type:        models.ExpenseType(strings.ToUpper(c.kind)),
		Method:      c.method,
	}
	if c.group != "" {
		in.GroupID = &c.group
	}
	if c.at != "" {
		if in.Timestamp, err = parseTime(c.at); err != nil {
			return c.app.fail(err)
		}
	}

	var splits []models.SplitInput
	if setFlags(f)["split"] {
		if splits, err = ParseSplits(c.splits); err != nil {
			return c.app.fail(err)
		}
	}

	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	expense, err := svc.CreateExpense(ctx, in, requester, splits)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Recorded expense %s: %s %s\n", expense.ID, expense.Title, expense.Amount.StringFixed(2))
	return subcommands.ExitSuccess
}

type expenseEditCmd struct {
	app *App
	id  string
	expenseFlags
}

func (*expenseEditCmd) Name() string     { return "expense-edit" }
func (*expenseEditCmd) Synopsis() string { return "change an expense you recorded" }
func (*expenseEditCmd) Usage() string {
	return `expense-edit -as <user id> -id <expense id> [flags]

  Only the flags given are changed. -group "" makes the expense personal.
  Giving -split replaces the split set; changing the amount or group of a
  split expense requires it.
`
}

func (c *expenseEditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Expense id (required)")
	c.register(f)
}

func (c *expenseEditCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if c.id == "" {
		return c.app.usage("-id is required")
	}

	set := setFlags(f)
	var patch ledger.ExpensePatch
	if set["title"] {
		patch.Title = &c.title
	}
	if set["desc"] {
		patch.Description = &c.desc
	}
	if set["amount"] {
		amount, err := ledger.ParseAmount(c.amount)
		if err != nil {
			return c.app.fail(err)
		}
		patch.Amount = &amount
	}
	if set["group"] {
		patch.Group = &c.group
	}
	if set["tags"] {
		tags := parseTags(c.tags)
		patch.Tags = &tags
	}
	if set["type"] {
		kind := models.ExpenseType(strings.ToUpper(c.kind))
		patch.Type = &kind
	}
	if set["method"] {
		patch.Method = &c.method
	}
	if set["icon"] {
		patch.Icon = &c.icon
	}
	if set["at"] {
		at, err := parseTime(c.at)
		if err != nil {
			return c.app.fail(err)
		}
		patch.Timestamp = &at
	}

	var splits []models.SplitInput
	if set["split"] {
		if splits, err = ParseSplits(c.splits); err != nil {
			return c.app.fail(err)
		}
	}

	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	expense, err := svc.UpdateExpense(ctx, c.id, requester, patch, splits)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Updated expense %s: %s %s\n", expense.ID, expense.Title, expense.Amount.StringFixed(2))
	return subcommands.ExitSuccess
}

type expenseRmCmd struct {
	app *App
	id  string
}

func (*expenseRmCmd) Name() string     { return "expense-rm" }
func (*expenseRmCmd) Synopsis() string { return "delete an expense you recorded and its splits" }
func (*expenseRmCmd) Usage() string    { return "expense-rm -as <user id> -id <expense id>\n" }

func (c *expenseRmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Expense id (required)")
}

func (c *expenseRmCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if c.id == "" {
		return c.app.usage("-id is required")
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	if err := svc.DeleteExpense(ctx, c.id, requester); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Deleted expense %s\n", c.id)
	return subcommands.ExitSuccess
}

type expenseShowCmd struct {
	app *App
	id  string
}

func (*expenseShowCmd) Name() string     { return "expense-show" }
func (*expenseShowCmd) Synopsis() string { return "show an expense and its splits" }
func (*expenseShowCmd) Usage() string    { return "expense-show -id <expense id>\n" }

func (c *expenseShowCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Expense id (required)")
}

func (c *expenseShowCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.id == "" {
		return c.app.usage("-id is required")
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	expense, err := svc.GetExpenseByID(ctx, c.id)
	if err != nil {
		return c.app.fail(err)
	}
	if expense == nil {
		return c.app.fail(fmt.Errorf("%w: expense %s", ledger.ErrNotFound, c.id))
	}
	splits, err := svc.GetExpenseSplits(ctx, c.id)
	if err != nil {
		return c.app.fail(err)
	}

	printExpense(c.app.Out, expense, splits)
	return subcommands.ExitSuccess
}

type expensesCmd struct {
	app   *App
	group string
}

func (*expensesCmd) Name() string     { return "expenses" }
func (*expensesCmd) Synopsis() string { return "list your expenses or a group's expenses" }
func (*expensesCmd) Usage() string    { return "expenses -as <user id> [-group <group id>]\n" }

func (c *expensesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.group, "group", "", "List this group's expenses instead of your own")
}

func (c *expensesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	var expenses []models.Expense
	if c.group != "" {
		expenses, err = svc.GetGroupExpenses(ctx, c.group, requester)
	} else {
		expenses, err = svc.GetUserExpenses(ctx, requester)
	}
	if err != nil {
		return c.app.fail(err)
	}

	if len(expenses) == 0 {
		fmt.Fprintln(c.app.Out, "No expenses.")
		return subcommands.ExitSuccess
	}
	tw := tabwriter.NewWriter(c.app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tAMOUNT\tGROUP")
	for _, e := range expenses {
		group := "-"
		if e.Group != nil {
			group = e.Group.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Timestamp.Format(time.DateOnly), e.Title, e.Amount.StringFixed(2), group)
	}
	_ = tw.Flush()
	return subcommands.ExitSuccess
}

type settleCmd struct {
	app     *App
	expense string
	user    string
	amount  string
}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "record a payment against a split" }
func (*settleCmd) Usage() string {
	return `settle -as <user id> -expense <expense id> -amount <amount> [-user <user id>]

  Moves amount of the user's share from pending to completed. The user
  defaults to -as; the expense author may settle anyone's split.
`
}

func (c *settleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.expense, "expense", "", "Expense id (required)")
	f.StringVar(&c.user, "user", "", "Whose split to settle")
	f.StringVar(&c.amount, "amount", "", "Amount paid (required)")
}

func (c *settleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if c.expense == "" || c.amount == "" {
		return c.app.usage("-expense and -amount are required")
	}
	user := c.user
	if user == "" {
		user = requester
	}
	amount, err := ledger.ParseAmount(c.amount)
	if err != nil {
		return c.app.fail(err)
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	split, err := svc.SettleSplit(ctx, c.expense, user, requester, amount)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Settled %s: %s pending, %s completed\n",
		amount.StringFixed(2), split.Pending.StringFixed(2), split.Completed.StringFixed(2))
	return subcommands.ExitSuccess
}

type balanceCmd struct {
	app  *App
	user string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show what a user owes and is owed" }
func (*balanceCmd) Usage() string    { return "balance -as <user id> [-user <user id>]\n" }

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User to show; defaults to -as")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	user := c.user
	if user == "" {
		requester, err := c.app.requester()
		if err != nil {
			return c.app.usage("%v", err)
		}
		user = requester
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	summary, err := svc.GetBalances(ctx, user)
	if err != nil {
		return c.app.fail(err)
	}
	printBalances(c.app.Out, summary)
	return subcommands.ExitSuccess
}

func userLabel(u *models.User, id string) string {
	if u == nil {
		return id
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func printExpense(w io.Writer, e *models.Expense, splits []models.Split) {
	fmt.Fprintf(w, "%s  %s\n", e.Title, e.Amount.StringFixed(2))
	fmt.Fprintf(w, "  id:     %s\n", e.ID)
	fmt.Fprintf(w, "  date:   %s\n", e.Timestamp.Format(time.DateOnly))
	fmt.Fprintf(w, "  type:   %s\n", e.Type)
	fmt.Fprintf(w, "  author: %s\n", userLabel(e.Author, e.AuthorID))
	if e.Group != nil {
		fmt.Fprintf(w, "  group:  %s\n", e.Group.Name)
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(w, "  tags:   %s\n", strings.Join(e.Tags, ", "))
	}
	if len(splits) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nUSER\tPENDING\tCOMPLETED")
	for _, s := range splits {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", userLabel(s.User, s.UserID), s.Pending.StringFixed(2), s.Completed.StringFixed(2))
	}
	_ = tw.Flush()
}

func printBalances(w io.Writer, b *ledger.BalanceSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	section := func(title string, rows []ledger.Balance) {
		if len(rows) == 0 {
			return
		}
		fmt.Fprintf(tw, "%s\n", title)
		for _, r := range rows {
			fmt.Fprintf(tw, "  %s\t%s pending\t%s completed\n",
				userLabel(r.Counterparty, r.CounterpartyID), r.Pending.StringFixed(2), r.Completed.StringFixed(2))
		}
	}
	section("You owe", b.Payables)
	section("You are owed", b.Receivables)
	_ = tw.Flush()

	fmt.Fprintf(w, "Total owed to you: %s\n", b.TotalOwed.StringFixed(2))
	fmt.Fprintf(w, "Total you owe:     %s\n", b.TotalOwing.StringFixed(2))
}
