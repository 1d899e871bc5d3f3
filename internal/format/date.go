package format

import (
	"regexp"
	"strings"
	"time"
)

// Placeholder выводится вместо пустого значения.
const Placeholder = "-"

// DisplayLayout используется при выводе дат, повторный разбор даёт тот же момент.
const DisplayLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
}

var parenRe = regexp.MustCompile(`\(.*\)|（.*）`)

// Location задаёт часовой пояс дат площадки. Переопределяется конфигурацией.
var Location = time.Local

// ParseDate разбирает дату в одном из известных форматов.
func ParseDate(raw string) (time.Time, bool) {
	clean := strings.TrimSpace(parenRe.ReplaceAllString(raw, ""))
	if clean == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, clean, Location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatDate(t time.Time) string {
	return t.In(Location).Format(DisplayLayout)
}

// DisplayDate: распознанная дата в едином формате, иначе исходная строка.
func DisplayDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}
	if t, ok := ParseDate(raw); ok {
		return FormatDate(t)
	}
	return raw
}

// IsBefore сообщает, что дата распознана и строго раньше now.
func IsBefore(raw string, now time.Time) bool {
	t, ok := ParseDate(raw)
	if !ok {
		return false
	}
	return t.Before(now)
}
