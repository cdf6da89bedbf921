package service

import (
	"strings"
	"time"
)

// DateLayout is the wire format of business dates.
const DateLayout = "2006-01-02"

// Calendar resolves business days in the restaurant's time zone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar creates a Calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: time.Now}
}

// Location returns the business time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Parse parses a YYYY-MM-DD date as midnight in the business time zone.
func (c *Calendar) Parse(s string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), c.loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

// Day returns midnight of the business day containing t.
func (c *Calendar) Day(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// Today returns midnight of the current business day.
func (c *Calendar) Today() time.Time {
	return c.Day(c.now())
}

// Bounds returns the half-open interval [from, to) covering day.
func (c *Calendar) Bounds(day time.Time) (from, to time.Time) {
	from = c.Day(day)
	return from, from.AddDate(0, 0, 1)
}

// Key formats day for use in cache keys and file names.
func (c *Calendar) Key(day time.Time) string {
	return day.In(c.loc).Format(DateLayout)
}
