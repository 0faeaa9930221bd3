package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

type groupAddCmd struct {
	app  *App
	name string
	icon string
	tags string
}

func (*groupAddCmd) Name() string     { return "group-add" }
func (*groupAddCmd) Synopsis() string { return "create a group owned by the current user" }
func (*groupAddCmd) Usage() string {
	return `group-add -as <user id> -name <name> [-icon <icon>] [-tags a,b]
`
}

func (c *groupAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Group name (required)")
	f.StringVar(&c.icon, "icon", "", "Group icon")
	f.StringVar(&c.tags, "tags", "", "Comma separated tags")
}

func (c *groupAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if strings.TrimSpace(c.name) == "" {
		return c.app.usage("-name is required")
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	group, err := svc.CreateGroup(ctx, requester, ledger.GroupInput{
		Name: c.name,
		Icon: c.icon,
		Tags: parseTags(c.tags),
	})
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Created group %s (%s)\n", group.ID, group.Name)
	return subcommands.ExitSuccess
}

type memberAddCmd struct {
	app   *App
	group string
	user  string
	role  string
}

func (*memberAddCmd) Name() string     { return "member-add" }
func (*memberAddCmd) Synopsis() string { return "add a user to a group" }
func (*memberAddCmd) Usage() string {
	return `member-add -as <user id> -group <group id> -user <user id> [-role MEMBER|ADMIN|OWNER]

  Only the group author or its owners and admins can add members.
`
}

func (c *memberAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.group, "group", "", "Group id (required)")
	f.StringVar(&c.user, "user", "", "User id to add (required)")
	f.StringVar(&c.role, "role", string(models.MemberRoleMember), "Member role")
}

func (c *memberAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	requester, err := c.app.requester()
	if err != nil {
		return c.app.usage("%v", err)
	}
	if c.group == "" || c.user == "" {
		return c.app.usage("-group and -user are required")
	}
	role := models.MemberRole(strings.ToUpper(c.role))
	if !role.IsValid() {
		return c.app.usage("unknown role %q", c.role)
	}
	svc, err := c.app.service(ctx)
	if err != nil {
		return c.app.fail(err)
	}

	member, err := svc.AddMember(ctx, c.group, requester, c.user, role)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Added %s to group %s as %s\n", member.UserID, member.GroupID, member.Role)
	return subcommands.ExitSuccess
}
