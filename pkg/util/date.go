package util

import (
	"strconv"
	"time"
)

// DateLayout is the calendar-day layout used on the wire and in cache keys.
const DateLayout = "2006-01-02"

// ParseTime tries YYYY-MM-DD, RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar day.
func Today() time.Time { return Day(time.Now()) }

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// ForecastDates returns h consecutive calendar days starting the day after last.
func ForecastDates(last time.Time, h int) []time.Time {
	if h <= 0 {
		return nil
	}
	first := Day(last).AddDate(0, 0, 1)
	out := make([]time.Time, h)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// AlignRange normalizes [from, to) to whole days and swaps an inverted range.
func AlignRange(from, to time.Time) (time.Time, time.Time) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		from, to = to, from
	}
	return from, to
}
