package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/3763024Irina/iren-order-bot/internal/handoff"
	"github.com/3763024Irina/iren-order-bot/internal/httpapi"
	"github.com/3763024Irina/iren-order-bot/internal/telegram"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intake server and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
			}

			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			adminChatID := flagOrViperInt64(cmd, "telegram-admin-chat-id", "telegram.admin_chat_id")
			siteURL := strings.TrimSpace(flagOrViperString(cmd, "site-url", "site.url"))

			ttl := flagOrViperDuration(cmd, "handoff-ttl", "handoff.ttl")
			if ttl <= 0 {
				ttl = handoff.DefaultTTL
			}
			sweepEvery := flagOrViperDuration(cmd, "sweep-interval", "handoff.sweep_interval")
			if sweepEvery <= 0 {
				sweepEvery = time.Minute
			}
			store := handoff.NewStore(ttl)

			var transport telegram.Transport
			switch mode := strings.TrimSpace(flagOrViperString(cmd, "telegram-mode", "telegram.mode")); mode {
			case "", "poll":
				transport = telegram.LongPoll{}
			case "webhook":
				wh, err := telegram.NewWebhook(
					flagOrViperString(cmd, "webhook-public-url", "telegram.webhook.public_url"),
					flagOrViperString(cmd, "webhook-secret", "telegram.webhook.secret"),
				)
				if err != nil {
					return err
				}
				transport = wh
			default:
				return fmt.Errorf("unknown telegram.mode: %s (want poll or webhook)", mode)
			}

			h := telegram.NewHandler(store, logger, adminChatID, siteURL)

			botOpts := []bot.Option{
				bot.WithSkipGetMe(),
				bot.WithDefaultHandler(h.HandleUpdate),
				bot.WithErrorsHandler(func(err error) {
					logger.Error("telegram_transport_error", "error", err.Error())
				}),
			}
			if wh, ok := transport.(telegram.Webhook); ok && wh.Secret != "" {
				botOpts = append(botOpts, bot.WithWebhookSecretToken(wh.Secret))
			}
			b, err := bot.New(token, botOpts...)
			if err != nil {
				return fmt.Errorf("telegram client: %w", err)
			}

			identity := telegram.NewIdentity(b)

			srv := httpapi.NewServer(store, identity, logger, httpapi.Config{
				AllowedOrigins: flagOrViperStringArray(cmd, "allowed-origin", "http.allowed_origins"),
				BodyLimit:      flagOrViperString(cmd, "body-limit", "http.body_limit"),
				RateRPS:        flagOrViperFloat64(cmd, "rate-rps", "http.rate.rps"),
				RateBurst:      flagOrViperInt(cmd, "rate-burst", "http.rate.burst"),
			})
			if wh, ok := transport.(telegram.Webhook); ok {
				srv.MountWebhook(wh.Path, b.WebhookHandler())
			}

			grace := flagOrViperDuration(cmd, "shutdown-grace", "shutdown.grace")
			if grace <= 0 {
				grace = 10 * time.Second
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go store.Run(ctx, sweepEvery, logger)

			// Best effort; the command menu is cosmetic.
			go func() {
				if err := telegram.RegisterCommands(ctx, b); err != nil {
					logger.Warn("telegram_set_commands_failed", "error", err.Error())
				}
			}()

			addr := fmt.Sprintf("%s:%d",
				strings.TrimSpace(flagOrViperString(cmd, "http-bind", "http.bind")),
				flagOrViperInt(cmd, "http-port", "http.port"))

			transportErr := make(chan error, 1)
			go func() {
				logger.Info("telegram_transport_started", "mode", transport.Mode())
				transportErr <- transport.Run(ctx, b)
			}()

			httpErr := make(chan error, 1)
			go func() {
				logger.Info("http_listening", "addr", addr)
				httpErr <- srv.Start(addr)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutdown_signal")
			case err := <-transportErr:
				if err != nil {
					logger.Error("telegram_transport_failed", "error", err.Error())
					stop()
					shutdownHTTP(srv, logger, grace)
					return err
				}
			case err := <-httpErr:
				if err != nil {
					logger.Error("http_server_failed", "error", err.Error())
					stop()
					return err
				}
			}

			shutdownHTTP(srv, logger, grace)
			logger.Info("shutdown_complete", "pending_records", store.Len())
			return nil
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().Int64("telegram-admin-chat-id", 0, "Chat that receives forwarded inquiries (0 = reply to the redeeming chat).")
	cmd.Flags().String("telegram-mode", "poll", "Update transport: poll or webhook.")
	cmd.Flags().String("webhook-public-url", "", "Public base URL for webhook mode.")
	cmd.Flags().String("webhook-secret", "", "Shared secret for webhook callbacks.")
	cmd.Flags().String("site-url", "", "Site the greeting button opens.")
	cmd.Flags().String("http-bind", "0.0.0.0", "HTTP listen address.")
	cmd.Flags().Int("http-port", 3000, "HTTP listen port.")
	cmd.Flags().String("body-limit", "200K", "Maximum request body size.")
	cmd.Flags().StringArray("allowed-origin", nil, "CORS origin allow-list (repeatable).")
	cmd.Flags().Float64("rate-rps", 5, "Per-IP sustained request rate for /prestart.")
	cmd.Flags().Int("rate-burst", 10, "Per-IP burst size for /prestart.")
	cmd.Flags().Duration("handoff-ttl", handoff.DefaultTTL, "How long an unredeemed inquiry is kept.")
	cmd.Flags().Duration("sweep-interval", time.Minute, "How often expired inquiries are reclaimed.")
	cmd.Flags().Duration("shutdown-grace", 10*time.Second, "How long in-flight requests get on shutdown.")

	return cmd
}

func shutdownHTTP(srv *httpapi.Server, logger *slog.Logger, grace time.Duration) {
	// In-flight requests get one grace period; a wedged listener must
	// not keep the process alive past it.
	watchdog := time.AfterFunc(grace+time.Second, func() {
		logger.Error("shutdown_forced")
		os.Exit(1)
	})
	defer watchdog.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown_error", "error", err.Error())
	}
}
