// Package notify delivers ledger notifications over email and webhooks.
package notify

import (
	"context"
	"errors"

	"gitlab.com/yelinaung/split-ledger/internal/config"
	"gitlab.com/yelinaung/split-ledger/internal/ledger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
)

// Nop drops every notification.
type Nop struct{}

func (Nop) SendInvite(context.Context, string, *models.User) error { return nil }

// Multi sends each notification through every notifier and joins their errors.
type Multi []ledger.Notifier

func (m Multi) SendInvite(ctx context.Context, email string, inviter *models.User) error {
	var errs []error
	for _, n := range m {
		if err := n.SendInvite(ctx, email, inviter); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a notifier for every channel configured in cfg.
// With none configured invitations are dropped.
func FromConfig(cfg *config.Config) ledger.Notifier {
	signupURL := cfg.FrontendBaseURL + "/signup"

	var channels Multi
	if cfg.EmailEnabled() {
		channels = append(channels, NewSMTPNotifier(SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			From:      cfg.SMTPEmail,
			Password:  cfg.SMTPPassword,
			SignupURL: signupURL,
		}))
	}
	if cfg.InviteWebhookURL != "" {
		channels = append(channels, NewWebhookNotifier(cfg.InviteWebhookURL, signupURL, cfg.NotifyTimeout))
	}

	switch len(channels) {
	case 0:
		return Nop{}
	case 1:
		return channels[0]
	}
	return channels
}

var (
	_ ledger.Notifier = Nop{}
	_ ledger.Notifier = Multi(nil)
	_ ledger.Notifier = (*SMTPNotifier)(nil)
	_ ledger.Notifier = (*WebhookNotifier)(nil)
)

func inviterName(inviter *models.User) string {
	switch {
	case inviter == nil:
		return "Someone"
	case inviter.Name != "":
		return inviter.Name
	default:
		return inviter.Email
	}
}
