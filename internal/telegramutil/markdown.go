package telegramutil

import "strings"

// markdownV2Reserved is the full set of characters Telegram's MarkdownV2
// parser treats as markup, plus the escape character itself.
const markdownV2Reserved = "\\_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 backslash-escapes every reserved MarkdownV2 character
// so user-controlled text renders literally instead of as markup.
func EscapeMarkdownV2(text string) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if strings.IndexByte(markdownV2Reserved, ch) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}
