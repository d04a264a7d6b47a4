package goal

import (
	"math"
	"time"
)

// =============================================================================
// DATE HELPERS - Goals are tracked at calendar-day granularity
// =============================================================================

// DateLayout is the layout of snapshot date keys.
const DateLayout = "2006-01-02"

// Day is the nominal length of a calendar day.
const Day = 24 * time.Hour

// StartOfDay returns 00:00 of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of t's calendar day.
// Renders as 23:59:59 but also covers sub-second timestamps.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DateKey formats t as a calendar date key ("2006-01-02").
func DateKey(t time.Time) string { return t.Format(DateLayout) }

// ParseDate parses a date key in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

func StartOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, loc)
}

// EndOfMonth returns the last instant of the month; day 0 of the next month
// normalizes to the last day of this one.
func EndOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	return EndOfDay(time.Date(year, month+1, 0, 0, 0, 0, 0, loc))
}

// DaysStarted counts the calendar days from start's day through the day
// containing now, counting that day only once it has begun. Days are
// counted in start's location, so a 23h or 25h DST day is still one day.
func DaysStarted(start, now time.Time) int {
	now = now.In(start.Location())
	n := DaysBetween(start, now)
	if now.After(StartOfDay(now)) {
		n++
	}
	return n
}

// DaysBetween counts calendar days from one date to another.
func DaysBetween(from, to time.Time) int {
	return int(math.Round(float64(StartOfDay(to).Sub(StartOfDay(from))) / float64(Day)))
}
