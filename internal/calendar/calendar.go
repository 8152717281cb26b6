// internal/calendar/calendar.go

// Package calendar handles the calendar dates stored on books and borrow
// records. Dates are kept as time.Time values at UTC midnight so that day
// arithmetic is exact.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the on-disk and console representation of a date.
const Layout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Clock supplies the current date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the host clock at call time.
type SystemClock struct{}

// Today returns the current calendar date in UTC.
func (SystemClock) Today() time.Time {
	return DateOf(time.Now().UTC())
}

// Fixed is a Clock that always reports the same date.
type Fixed time.Time

// Today returns the fixed date.
func (f Fixed) Today() time.Time {
	return DateOf(time.Time(f))
}

// DateOf drops the time of day, keeping the calendar date of t in its own
// location, and returns it at UTC midnight.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date.
func Date(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// Parse reads a YYYY-MM-DD date. The empty string yields the zero time.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Format renders t as YYYY-MM-DD, or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(Layout)
}

// DaysBetween counts whole calendar days from start to end. It is negative
// when end precedes start.
func DaysBetween(start, end time.Time) int {
	return int((DateOf(end).Unix() - DateOf(start).Unix()) / secondsPerDay)
}
