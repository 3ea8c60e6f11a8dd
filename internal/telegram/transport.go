package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/3763024Irina/iren-order-bot/internal/handoff"
)

// Transport is the one way the process receives bot events. Exactly
// one variant is chosen at startup and stays active for the process
// lifetime; switching requires a restart.
type Transport interface {
	// Run blocks receiving updates until ctx is canceled. A non-nil
	// error means the transport never came up.
	Run(ctx context.Context, b *bot.Bot) error
	Mode() string
}

// LongPoll pulls updates by continuously calling getUpdates.
type LongPoll struct{}

func (LongPoll) Mode() string { return "poll" }

func (LongPoll) Run(ctx context.Context, b *bot.Bot) error {
	// A leftover webhook registration blocks getUpdates.
	if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	b.Start(ctx)
	return nil
}

// Webhook registers a public callback with Telegram and processes the
// updates the platform pushes to it. The HTTP route itself is mounted
// by the caller from bot.Bot.WebhookHandler; the shared-secret header
// is verified inside the SDK via bot.WithWebhookSecretToken.
type Webhook struct {
	PublicURL string
	Secret    string
	Path      string
}

// NewWebhook validates the push-mode configuration and picks a random
// callback path for this process.
func NewWebhook(publicURL, secret string) (Webhook, error) {
	publicURL = strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if publicURL == "" {
		return Webhook{}, errors.New("webhook mode requires telegram.webhook.public_url")
	}
	suffix, err := handoff.NewToken()
	if err != nil {
		return Webhook{}, fmt.Errorf("webhook path: %w", err)
	}
	return Webhook{
		PublicURL: publicURL,
		Secret:    strings.TrimSpace(secret),
		Path:      "/telegram/" + suffix,
	}, nil
}

func (w Webhook) Mode() string { return "webhook" }

func (w Webhook) Run(ctx context.Context, b *bot.Bot) error {
	ok, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         w.PublicURL + w.Path,
		SecretToken: w.Secret,
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	if !ok {
		return errors.New("set webhook: not confirmed")
	}
	b.StartWebhook(ctx)
	return nil
}
