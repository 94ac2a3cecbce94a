package menu

import (
	"strings"

	"lunch-bot/internal/domain"
)

// Header: первая строка сообщения с меню.
const Header = "**Dagens lunsj:**"

// PollPrompt: текст отдельного сообщения для голосования.
const PollPrompt = "Hvor vil vi spise lunsj i dag? Reager med emoji:"

// Format формирует текст меню в порядке каталога. Рестораны без блюд
// выводятся только заголовком.
func Format(m domain.Menu) string {
	var builder strings.Builder
	builder.WriteString(Header)
	builder.WriteString("\n\n")
	for _, section := range m.Sections {
		builder.WriteString("**" + sectionTitle(section.Restaurant) + ":**\n")
		for _, item := range section.Items {
			builder.WriteString("• " + item + "\n")
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

func sectionTitle(r domain.Restaurant) string {
	if r.Emoji == "" {
		return r.Name
	}
	return r.Name + " " + r.Emoji
}
