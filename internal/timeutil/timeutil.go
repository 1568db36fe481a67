// Package timeutil provides timestamp parsing and calendar-date
// truncation shared by the store, the migration, and the tracker.
package timeutil

import "time"

// DateFormat is the canonical calendar-date layout (YYYY-MM-DD).
const DateFormat = "2006-01-02"

// layouts accepted by ParseLenient, tried in order. Trackers are
// best-effort about timezone suffixes, so bare forms are allowed.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateFormat,
}

// ParseLenient parses ts against the accepted timestamp layouts.
// Returns false when none match.
func ParseLenient(ts string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateOf truncates t to its calendar date as written, without
// converting to another zone. A session is attributed to the date
// its own wall clock shows.
func DateOf(t time.Time) string {
	return t.Format(DateFormat)
}

// DateOrNow returns the calendar date of ts, falling back to the
// date of now when ts is absent or unparseable. Parse failures
// are a deliberate leniency, not an error: tracker clocks are
// best-effort.
func DateOrNow(ts string, now time.Time) string {
	if ts == "" {
		return DateOf(now)
	}
	t, ok := ParseLenient(ts)
	if !ok {
		return DateOf(now)
	}
	return DateOf(t)
}

// IsValidDate checks that s is a well-formed YYYY-MM-DD string.
func IsValidDate(s string) bool {
	_, err := time.Parse(DateFormat, s)
	return err == nil
}

// DaysAgo returns the calendar date n days before now. DaysAgo(0)
// is today, so a trailing window of w days starts at DaysAgo(w-1).
func DaysAgo(n int, now time.Time) string {
	return now.AddDate(0, 0, -n).Format(DateFormat)
}
