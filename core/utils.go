package core

import (
	"strings"
	"time"
)

// DateFormat is the calendar-day grain used throughout; attendance
// uniqueness is per student per DateFormat value.
const (
	DateFormat  = "2006-01-02"
	MonthFormat = "2006-01"
	ClockFormat = "15:04:05"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateFormat, date)
}

// MonthOf returns the "YYYY-MM" month of a "YYYY-MM-DD" date.
// The date is assumed valid.
func MonthOf(date string) string {
	if len(date) < len(MonthFormat) {
		return date
	}
	return date[:len(MonthFormat)]
}
