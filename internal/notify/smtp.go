package notify

import (
	"context"
	"fmt"
	"html"

	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	// SignupURL is linked from invitation emails.
	SignupURL string
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends HTML emails through an SMTP server.
type SMTPNotifier struct {
	sender    mailSender
	from      string
	signupURL string
}

// NewSMTPNotifier creates a notifier that dials the server for every message.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		sender:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password),
		from:      cfg.From,
		signupURL: cfg.SignupURL,
	}
}

// SendInvite emails an invitation to join the ledger.
func (n *SMTPNotifier) SendInvite(ctx context.Context, email string, inviter *models.User) error {
	name := inviterName(inviter)

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", fmt.Sprintf("%s invited you to split expenses", name))
	msg.SetBody("text/html", inviteBody(name, n.signupURL))

	done := make(chan error, 1)
	go func() { done <- n.sender.DialAndSend(msg) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to send invite email: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send invite email: %w", err)
		}
	}

	logger.Log.Debug().Str("email", logger.SanitizeEmail(email)).Msg("Invite email sent")
	return nil
}

func inviteBody(inviter, signupURL string) string {
	return fmt.Sprintf(
		`<p>Hi,</p><p><b>%s</b> invited you to share and split expenses with them.</p>`+
			`<p><a href="%s">Accept the invitation</a></p>`,
		html.EscapeString(inviter), html.EscapeString(signupURL),
	)
}
