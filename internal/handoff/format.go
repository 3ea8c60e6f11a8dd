package handoff

import (
	"strings"

	"github.com/3763024Irina/iren-order-bot/internal/telegramutil"
)

// FormatInquiry renders an inquiry as the MarkdownV2 notification sent
// to the admin chat. Section order is fixed; sections whose values are
// empty are dropped. Every submitted value is escaped so visitor input
// cannot inject markup or links.
func FormatInquiry(p InquiryPayload) string {
	esc := telegramutil.EscapeMarkdownV2

	lines := make([]string, 0, 8)
	lines = append(lines, "*Новая заявка*")
	if p.Program.Title != "" || p.Program.ID != "" {
		line := "*Программа:*"
		if p.Program.Title != "" {
			line += " " + esc(p.Program.Title)
		}
		if p.Program.ID != "" {
			line += " \\(" + esc(p.Program.ID) + "\\)"
		}
		lines = append(lines, line)
	}
	if p.Program.URL != "" {
		lines = append(lines, "*Страница:* "+esc(p.Program.URL))
	}
	lines = append(lines,
		"*Имя:* "+esc(p.Name),
		"*Контакт клиента:* "+esc(p.Contact),
		"*Дата:* "+esc(p.Date),
		"*Гостей:* "+esc(p.Guests),
	)
	if p.Message != "" {
		lines = append(lines, "*Сообщение:* "+esc(p.Message))
	}
	return strings.Join(lines, "\n")
}
