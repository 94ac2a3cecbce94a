package domain

import (
	"fmt"
	"strings"
	"time"
)

// Restaurant описывает ресторан из каталога и эмодзи для голосования.
type Restaurant struct {
	Name  string
	Emoji string
}

// Catalog: упорядоченный список ресторанов. Порядок каталога задаёт порядок
// вывода меню и порядок реакций.
type Catalog []Restaurant

// DefaultCatalog возвращает рестораны по умолчанию.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "Eat The Street", Emoji: "🍕"},
		{Name: "Flow", Emoji: "🍲"},
		{Name: "Fresh 4 You", Emoji: "🥗"},
	}
}

// ParseCatalog разбирает строку вида "Name=emoji;Name=emoji".
func ParseCatalog(raw string) (Catalog, error) {
	var catalog Catalog
	seen := make(map[string]struct{})
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, emoji, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		emoji = strings.TrimSpace(emoji)
		if !ok || name == "" || emoji == "" {
			return nil, fmt.Errorf("некорректный ресторан %q: ожидается Name=emoji", entry)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("ресторан %q указан дважды", name)
		}
		seen[name] = struct{}{}
		catalog = append(catalog, Restaurant{Name: name, Emoji: emoji})
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("каталог ресторанов пуст")
	}
	return catalog, nil
}

// EmptyMenu возвращает меню, где у каждого ресторана пустой список блюд.
func (c Catalog) EmptyMenu() Menu {
	sections := make([]MenuSection, 0, len(c))
	for _, r := range c {
		sections = append(sections, MenuSection{Restaurant: r, Items: []string{}})
	}
	return Menu{Sections: sections}
}

// MenuSection: блюда одного ресторана.
type MenuSection struct {
	Restaurant Restaurant
	Items      []string
}

// Menu содержит секции всех ресторанов каталога в порядке каталога.
type Menu struct {
	Sections []MenuSection
}

// Items возвращает блюда ресторана или nil, если ресторана нет в меню.
func (m Menu) Items(name string) []string {
	for _, s := range m.Sections {
		if s.Restaurant.Name == name {
			return s.Items
		}
	}
	return nil
}

// Append добавляет блюдо ресторану. Возвращает false, если ресторана нет.
func (m *Menu) Append(name, item string) bool {
	for i := range m.Sections {
		if m.Sections[i].Restaurant.Name == name {
			m.Sections[i].Items = append(m.Sections[i].Items, item)
			return true
		}
	}
	return false
}

// Date: календарная дата в часовом поясе бота.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf возвращает дату момента t в его собственной локации.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate разбирает дату в формате 2006-01-02.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String форматирует дату как 2006-01-02.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero сообщает, что дата не задана.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time возвращает полночь даты в указанной локации.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// MentionMode определяет, когда публикация по расписанию упоминает всех.
type MentionMode string

const (
	MentionAlways MentionMode = "always"
	MentionNever  MentionMode = "never"
	MentionWeekly MentionMode = "weekly"
)

// ParseMentionMode проверяет значение режима упоминаний.
func ParseMentionMode(raw string) (MentionMode, error) {
	switch mode := MentionMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case MentionAlways, MentionNever, MentionWeekly:
		return mode, nil
	default:
		return "", fmt.Errorf("неизвестный режим упоминаний %q", raw)
	}
}
