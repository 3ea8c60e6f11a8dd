// Package telegram implements the redemption side of the handoff: the
// update handler that consumes /start tokens, the transports that feed
// it updates, and the lazy bot identity used for deep links.
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/3763024Irina/iren-order-bot/internal/handoff"
)

const (
	greetingReply  = "Здравствуйте! Нажмите «Заказать» на сайте — заявка придёт сюда автоматически.\nИли напишите имя/даты здесь, и я отвечу."
	expiredReply   = "⚠️ Срок действия ссылки истёк. Отправьте заявку ещё раз с сайта."
	confirmReply   = "Спасибо! Ваша заявка отправлена. Я свяжусь с вами в ближайшее время ✅"
	siteButtonText = "Открыть сайт"
)

// Sender is the one bot API call the handler performs; *bot.Bot
// satisfies it, tests substitute a fake.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Handler routes inbound bot updates. A /start carrying a token runs
// the redemption flow; the rest is diagnostics.
type Handler struct {
	store       *handoff.Store
	logger      *slog.Logger
	adminChatID int64 // 0: fall back to the invoking chat
	siteURL     string
}

func NewHandler(store *handoff.Store, logger *slog.Logger, adminChatID int64, siteURL string) *Handler {
	return &Handler{
		store:       store,
		logger:      logger,
		adminChatID: adminChatID,
		siteURL:     siteURL,
	}
}

// RedeemResult reports the two independent outcomes of a redemption:
// whether a payload was consumed from the store, and whether the admin
// actually received it. A consumed payload with a failed delivery is
// still a success for the submitter.
type RedeemResult struct {
	Consumed      bool
	AdminNotified bool
}

// HandleUpdate is installed as the bot's default handler for both
// transports.
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}
	h.handleMessage(ctx, b, update.Message)
}

func (h *Handler) handleMessage(ctx context.Context, s Sender, msg *models.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" || !strings.HasPrefix(text, "/") {
		h.logger.Debug("telegram_ignored", "chat_id", chatID, "text_len", len(text))
		return
	}

	command, args := splitCommand(text)
	switch normalizeCommand(command) {
	case "/start":
		h.handleStart(ctx, s, chatID, strings.TrimSpace(args))
	case "/id":
		h.reply(ctx, s, chatID, "chat_id: "+strconv.FormatInt(chatID, 10), nil)
	default:
		h.logger.Debug("telegram_unknown_command", "chat_id", chatID, "command", command)
	}
}

// handleStart runs the redemption flow. The payload is consumed before
// any network delivery, so a slow or failed admin send can neither
// stall the store nor resurrect the token.
func (h *Handler) handleStart(ctx context.Context, s Sender, chatID int64, token string) RedeemResult {
	if token == "" {
		h.logger.Info("telegram_start", "chat_id", chatID, "token_present", false)
		h.reply(ctx, s, chatID, greetingReply, h.siteKeyboard())
		return RedeemResult{}
	}

	payload, outcome := h.store.Take(token)
	switch outcome {
	case handoff.TakeMiss:
		h.logger.Info("handoff_redeem_miss", "chat_id", chatID)
		h.reply(ctx, s, chatID, expiredReply, nil)
		return RedeemResult{}
	case handoff.TakeExpired:
		h.logger.Info("handoff_redeem_expired", "chat_id", chatID)
		h.reply(ctx, s, chatID, expiredReply, nil)
		return RedeemResult{}
	}

	result := RedeemResult{Consumed: true}
	target := h.adminChatID
	if target == 0 {
		target = chatID
	}

	_, err := s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             target,
		Text:               handoff.FormatInquiry(payload),
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		// The inquiry was already captured at intake; a delivery error
		// is operator-side and must not fail the submitter's flow.
		h.logger.Error("handoff_admin_delivery_failed",
			"inquiry_id", payload.ID,
			"chat_id", chatID,
			"admin_chat_id", target,
			"error", err.Error(),
		)
	} else {
		result.AdminNotified = true
		h.logger.Info("handoff_delivered",
			"inquiry_id", payload.ID,
			"chat_id", chatID,
			"admin_chat_id", target,
		)
	}

	h.reply(ctx, s, chatID, confirmReply, nil)
	return result
}

func (h *Handler) reply(ctx context.Context, s Sender, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := s.SendMessage(ctx, params); err != nil {
		h.logger.Warn("telegram_reply_failed", "chat_id", chatID, "error", err.Error())
	}
}

func (h *Handler) siteKeyboard() models.ReplyMarkup {
	if h.siteURL == "" {
		return nil
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: siteButtonText, URL: h.siteURL},
		}},
	}
}

// RegisterCommands publishes the bot command menu. Best-effort; the
// bot works without it.
func RegisterCommands(ctx context.Context, b *bot.Bot) error {
	_, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Запустить бота"},
			{Command: "id", Description: "Показать мой chat_id"},
		},
	})
	return err
}

func splitCommand(text string) (command, rest string) {
	text = strings.TrimSpace(text)
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeCommand lowercases a slash command and strips the
// "/cmd@BotName" suffix some clients append.
func normalizeCommand(command string) string {
	if !strings.HasPrefix(command, "/") {
		return ""
	}
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command)
}
