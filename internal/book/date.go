package book

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used for storage.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01",
	"2006",
}

// Date is an optional calendar date kept in its stored string form.
// Empty or unparseable values behave as "no date".
type Date string

// NewDate formats t as a calendar date.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time parses the date. The second result is false when the date is absent or
// malformed.
func (d Date) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(d))
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

// Year returns the calendar year of the date.
func (d Date) Year() (int, bool) {
	t, ok := d.Time()
	if !ok {
		return 0, false
	}
	return t.Year(), true
}

// IsZero reports whether no usable date is present.
func (d Date) IsZero() bool {
	_, ok := d.Time()
	return !ok
}

// Normalize rewrites a parseable date into DateLayout and drops anything else.
func (d Date) Normalize() Date {
	t, ok := d.Time()
	if !ok {
		return ""
	}
	return NewDate(t)
}
