package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateFormatsHint lists the accepted layouts for user-facing messages.
const DateFormatsHint = "DD-MM-YYYY, DD/MM/YYYY, YYYY-MM-DD or YYYY/MM/DD"

const (
	inputLayout   = "2006-01-02"
	storageSuffix = "T12:00:00.000Z"
	minISOYear    = 1900
)

var (
	dayFirstPattern  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	yearFirstPattern = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)

	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
	}
)

// ParseDate interprets a human-entered date in the local time zone.
func ParseDate(text string) (time.Time, bool) {
	return ParseDateIn(text, time.Local)
}

// ParseDateIn interprets text as a calendar date and returns noon of that
// date in loc. Noon keeps the calendar day stable when the instant is later
// rendered in a zone up to twelve hours away.
func ParseDateIn(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return time.Time{}, false
	}

	if m := dayFirstPattern.FindStringSubmatch(raw); m != nil {
		first, second, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if t, ok := calendarNoon(year, second, first, loc); ok {
			return t, true
		}
		// Month-first is only tried when the leading group can be a month.
		if first <= 12 {
			if t, ok := calendarNoon(year, first, second, loc); ok {
				return t, true
			}
		}
		return time.Time{}, false
	}

	if m := yearFirstPattern.FindStringSubmatch(raw); m != nil {
		return calendarNoon(atoi(m[1]), atoi(m[2]), atoi(m[3]), loc)
	}

	for _, layout := range isoLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if parsed.Year() <= minISOYear {
			return time.Time{}, false
		}
		return calendarNoon(parsed.Year(), int(parsed.Month()), parsed.Day(), loc)
	}
	return time.Time{}, false
}

// StorageString renders the canonical stored form of a parsed date.
func StorageString(t time.Time) string {
	return t.Format(inputLayout) + storageSuffix
}

// InputString renders the YYYY-MM-DD form used by date inputs.
func InputString(t time.Time) string {
	return t.Format(inputLayout)
}

func calendarNoon(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 12, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}
