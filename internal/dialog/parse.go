package dialog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zhukovDV72toru/alice/internal/resolver"
	"github.com/zhukovDV72toru/alice/internal/schedule"
)

// parseName expects the dictation order "фамилия имя отчество". Stray
// filler words before the name ("меня зовут", "пациент") are dropped.
func parseName(text string) (last, first, middle string, ok bool) {
	norm := resolver.Normalize(text)
	for _, filler := range []string{"меня зовут", "его зовут", "её зовут", "пациент", "пациентка"} {
		norm = strings.TrimSpace(strings.TrimPrefix(norm, filler))
	}

	parts := strings.Fields(norm)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return title(parts[0]), title(parts[1]), title(parts[2]), true
}

func title(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// genderFromPatronymic guesses the registry's gender field from the
// patronymic ending. An unknown ending leaves the field empty.
func genderFromPatronymic(middle string) string {
	lower := strings.ToLower(middle)
	switch {
	case strings.HasSuffix(lower, "вич"), strings.HasSuffix(lower, "ьич"), strings.HasSuffix(lower, "лич"):
		return "male"
	case strings.HasSuffix(lower, "вна"), strings.HasSuffix(lower, "чна"), strings.HasSuffix(lower, "шна"):
		return "female"
	default:
		return ""
	}
}

var monthNames = map[string]time.Month{
	"января": 1, "февраля": 2, "марта": 3, "апреля": 4,
	"мая": 5, "июня": 6, "июля": 7, "августа": 8,
	"сентября": 9, "октября": 10, "ноября": 11, "декабря": 12,
	"январь": 1, "февраль": 2, "март": 3, "апрель": 4,
	"май": 5, "июнь": 6, "июль": 7, "август": 8,
	"сентябрь": 9, "октябрь": 10, "ноябрь": 11, "декабрь": 12,
}

var (
	dottedDateRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})(?:\.(\d{4}))?\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	spokenDateRe = regexp.MustCompile(`\b(\d{1,2})\s+([а-яё]+)(?:\s+(\d{4}))?`)
)

// parseDate understands "12.03.1990", "2026-09-15", "15.09" and
// "15 сентября [2026]". A date without a year gets the year that keeps
// it today or later.
func parseDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	if m := isoDateRe.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return makeDate(y, time.Month(mo), d)
	}

	if m := dottedDateRe.FindStringSubmatch(lower); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			return makeDate(y, time.Month(mo), d)
		}
		return yearless(now, time.Month(mo), d)
	}

	if m := spokenDateRe.FindStringSubmatch(lower); m != nil {
		month, ok := monthNames[m[2]]
		if !ok {
			return time.Time{}, false
		}
		d, _ := strconv.Atoi(m[1])
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			return makeDate(y, month, d)
		}
		return yearless(now, month, d)
	}

	return time.Time{}, false
}

func makeDate(y int, m time.Month, d int) (time.Time, bool) {
	if d < 1 || d > 31 || m < 1 || m > 12 || y < 1850 || y > 2200 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != m {
		return time.Time{}, false
	}
	return t, true
}

func yearless(now time.Time, m time.Month, d int) (time.Time, bool) {
	t, ok := makeDate(now.Year(), m, d)
	if !ok {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t.Before(today) {
		return makeDate(now.Year()+1, m, d)
	}
	return t, true
}

var timeRe = regexp.MustCompile(`\b(\d{1,2})(?:[:.\s]\s*(\d{2}))?\b`)

// parseTime understands "9", "9:30", "09.30" and "9 30", returning the
// canonical "15:04" form.
func parseTime(text string) (string, bool) {
	m := timeRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	hh, _ := strconv.Atoi(m[1])
	mm := 0
	if m[2] != "" {
		mm, _ = strconv.Atoi(m[2])
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return "", false
	}
	return time.Date(0, 1, 1, hh, mm, 0, 0, time.UTC).Format(schedule.TimeLayout), true
}
