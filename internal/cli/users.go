package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

type userAddCmd struct {
	app   *App
	email string
	name  string
	phone string
}

func (*userAddCmd) Name() string     { return "user-add" }
func (*userAddCmd) Synopsis() string { return "register a user, or show the user already using the email" }
func (*userAddCmd) Usage() string {
	return `user-add -email <email> [-name <name>] [-phone <phone>]

  Registers a joined user. When the email is already registered the existing
  user is printed instead.
`
}

func (c *userAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address (required)")
	f.StringVar(&c.name, "name", "", "Display name")
	f.StringVar(&c.phone, "phone", "", "Phone number")
}

func (c *userAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.email == "" {
		return c.app.usage("-email is required")
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	u := models.User{Name: c.name, Email: c.email}
	if c.phone != "" {
		u.Phone = &c.phone
	}
	user, created, err := svc.FindOrCreateUser(ctx, u)
	if err != nil {
		return c.app.fail(err)
	}

	if created {
		fmt.Fprintf(c.app.Out, "Created user %s (%s)\n", user.ID, user.Email)
	} else {
		fmt.Fprintf(c.app.Out, "User %s already uses %s\n", user.ID, user.Email)
	}
	return subcommands.ExitSuccess
}

type inviteCmd struct {
	app   *App
	email string
}

func (*inviteCmd) Name() string     { return "invite" }
func (*inviteCmd) Synopsis() string { return "invite someone by email" }
func (*inviteCmd) Usage() string {
	return `invite -as <user id> -email <email>

  Creates an invited user and sends them an invitation.
`
}

func (c *inviteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address to invite (required)")
}

func (c *inviteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if c.email == "" {
		return c.app.usage("-email is required")
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	user, err := svc.InviteUser(ctx, requester, c.email)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Invited %s as user %s\n", user.Email, user.ID)
	return subcommands.ExitSuccess
}
