package format

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"
)

var (
	wanYuanRe = regexp.MustCompile(`(\d+\.?\d*)万元`)
	yuanRe    = regexp.MustCompile(`(\d+\.?\d*)元`)
	numberRe  = regexp.MustCompile(`(\d+\.?\d*)`)
	decimalRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

	moneyPrinter = message.NewPrinter(language.Chinese)
)

// ParsePrice приводит строку бюджета ("12万元", "3500元", "1,200.5") к сумме в юанях.
// Второе значение false, если строку разобрать нельзя.
func ParsePrice(raw string) (float64, bool) {
	if raw == "" || raw == "-" {
		return 0, false
	}
	// Полноширинные цифры и запятые встречаются в данных площадки
	clean := width.Narrow.String(raw)
	clean = strings.NewReplacer(" ", "", ",", "", "　", "").Replace(clean)
	if clean == "" {
		return 0, false
	}

	switch {
	case strings.Contains(clean, "元万元"):
		// опечатка площадки: сумма уже в юанях
		if m := numberRe.FindStringSubmatch(clean); m != nil {
			return parseFloat(m[1])
		}
	case strings.Contains(clean, "万元"):
		if m := wanYuanRe.FindStringSubmatch(clean); m != nil {
			v, ok := parseFloat(m[1])
			return v * 10000, ok
		}
	case strings.Contains(clean, "元"):
		if m := yuanRe.FindStringSubmatch(clean); m != nil {
			return parseFloat(m[1])
		}
	}

	return parseFloat(clean)
}

// parseFloat принимает только десятичную запись, без NaN, Inf и hex.
func parseFloat(s string) (float64, bool) {
	if !decimalRe.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DisplayPrice показывает нормализованную сумму, а при неудаче исходную строку.
func DisplayPrice(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}
	if v, ok := ParsePrice(raw); ok {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return raw
}

// Money форматирует сумму как "¥1,234.50".
func Money(v float64) string {
	return moneyPrinter.Sprintf("¥%.2f", v)
}

// Percent форматирует долю как "12.34%".
func Percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 2, 64) + "%"
}
