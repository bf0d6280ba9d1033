package formula

import (
	"regexp"
	"strings"
	"time"
)

// DatePart is a canonical date part name.
type DatePart string

// Canonical date parts.
const (
	PartYear    DatePart = "year"
	PartQuarter DatePart = "quarter"
	PartMonth   DatePart = "month"
	PartWeek    DatePart = "week"
	PartDay     DatePart = "day"
	PartHour    DatePart = "hour"
	PartMinute  DatePart = "minute"
	PartSecond  DatePart = "second"
)

var datePartAliases = map[string]DatePart{
	"year": PartYear, "years": PartYear, "yy": PartYear, "yyyy": PartYear, "y": PartYear,
	"quarter": PartQuarter, "quarters": PartQuarter, "qq": PartQuarter, "q": PartQuarter,
	"month": PartMonth, "months": PartMonth, "mm": PartMonth, "m": PartMonth, "mon": PartMonth,
	"week": PartWeek, "weeks": PartWeek, "wk": PartWeek, "ww": PartWeek, "w": PartWeek,
	"day": PartDay, "days": PartDay, "dd": PartDay, "d": PartDay,
	"hour": PartHour, "hours": PartHour, "hh": PartHour, "h": PartHour,
	"minute": PartMinute, "minutes": PartMinute, "mi": PartMinute, "n": PartMinute, "min": PartMinute,
	"second": PartSecond, "seconds": PartSecond, "ss": PartSecond, "s": PartSecond, "sec": PartSecond,
}

// ParseDatePart resolves a date part name or abbreviation, case-insensitively.
func ParseDatePart(s string) (DatePart, bool) {
	p, ok := datePartAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// dateLiteralPattern accepts YYYY-MM-DD and YYYY-MM-DD HH:MM:SS with optional
// fractional seconds and a Z or ±HH:MM offset.
var dateLiteralPattern = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}( \d{2}:\d{2}:\d{2}(\.\d{1,9})?(Z|[+-]\d{2}:?\d{2})?)?$`,
)

var dateLiteralLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
}

// ParseDateLiteral validates and parses a date literal.
func ParseDateLiteral(s string) (time.Time, bool) {
	if !dateLiteralPattern.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLiteralLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
