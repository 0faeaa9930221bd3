package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"gitlab.com/yelinaung/split-ledger/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// EventUserInvited is the event name posted when a user is invited.
const EventUserInvited = "user.invited"

type webhookUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type webhookPayload struct {
	Event     string       `json:"event"`
	Email     string       `json:"email"`
	Inviter   *webhookUser `json:"inviter,omitempty"`
	SignupURL string       `json:"signup_url,omitempty"`
	SentAt    time.Time    `json:"sent_at"`
}

// WebhookNotifier posts notifications as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url       string
	signupURL string
	client    *http.Client
}

// NewWebhookNotifier creates a notifier posting to url. Requests are traced.
func NewWebhookNotifier(url, signupURL string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:       url,
		signupURL: signupURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// SendInvite posts a user.invited event.
func (n *WebhookNotifier) SendInvite(ctx context.Context, email string, inviter *models.User) error {
	payload := webhookPayload{
		Event:     EventUserInvited,
		Email:     email,
		SignupURL: n.signupURL,
		SentAt:    time.Now().UTC(),
	}
	if inviter != nil {
		payload.Inviter = &webhookUser{ID: inviter.ID, Name: inviter.Name, Email: inviter.Email}
	}
	return n.post(ctx, payload)
}

func (n *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	logger.Log.Debug().Str("event", payload.Event).Int("status", resp.StatusCode).Msg("Webhook delivered")
	return nil
}
