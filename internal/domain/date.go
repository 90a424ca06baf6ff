package domain

import (
	"strings"
	"time"
)

// DateLayout is the storage format of calendar dates (due dates, expense dates).
const DateLayout = "2006-01-02"

// ParseDate parses a stored calendar date. Both plain dates and RFC3339
// timestamps are accepted (timestamp columns come back as RFC3339); the
// result is always midnight UTC of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return time.Time{}, err
		}
		t = ts
	}
	return CalendarDay(t), nil
}

// CalendarDay drops the clock part of t, keeping the calendar day as seen in t's location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar day in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the number of calendar days from start to end
// (negative when end is before start).
func DaysBetween(start, end time.Time) int {
	return int(CalendarDay(end).Sub(CalendarDay(start)).Hours() / 24)
}
