package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the normalized date format
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan, 2 2006",
	"January, 2 2006",
	"01/02/2006",
	"1/2/2006",
	"2 January 2006",
	"2 Jan 2006",
	"01-02-06",
}

var relativeDate = regexp.MustCompile(`(?i)^\s*([\w-]+)\s+(day|week|month|year)s?\s+(?:after|from|following)\s+(?:the\s+)?(?:start|effective|commencement)\s+date\.?\s*$`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"eighteen": 18, "twenty-four": 24, "thirty": 30, "sixty": 60, "ninety": 90,
}

// ParseDate parses s in any of the recognized absolute layouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate returns s as YYYY-MM-DD when it is an absolute date, otherwise s unchanged
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format(DateLayout)
	}
	return s
}

// ResolveRelative resolves phrases like "four months after start date" against base.
// Month and year offsets that land past the end of the target month are not resolved.
func ResolveRelative(phrase string, base time.Time) (time.Time, bool) {
	m := relativeDate.FindStringSubmatch(phrase)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		var ok bool
		n, ok = numberWords[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
	}
	var t time.Time
	switch strings.ToLower(m[2]) {
	case "day":
		return base.AddDate(0, 0, n), true
	case "week":
		return base.AddDate(0, 0, 7*n), true
	case "month":
		t = base.AddDate(0, n, 0)
	case "year":
		t = base.AddDate(n, 0, 0)
	default:
		return time.Time{}, false
	}
	// Jan 31 + 1 month has no matching day; AddDate would roll into March.
	if t.Day() != base.Day() {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDates rewrites the extraction's dates to YYYY-MM-DD where they can be resolved
// without guessing. Anything else is kept verbatim.
func NormalizeDates(e *ExtractionResult) {
	if e == nil {
		return
	}
	effective, haveEffective := ParseDate(e.EffectiveDate)
	if haveEffective {
		e.EffectiveDate = effective.Format(DateLayout)
	}

	if t, ok := ParseDate(e.ExpirationDate); ok {
		e.ExpirationDate = t.Format(DateLayout)
		return
	}
	if haveEffective {
		if t, ok := ResolveRelative(e.ExpirationDate, effective); ok {
			e.ExpirationDate = t.Format(DateLayout)
		}
	}
}
