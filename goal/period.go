package goal

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// INTERVAL - The closed date range a goal is measured over
// =============================================================================

// Interval is a closed range [Start, End]. Start is a day start and End is
// the last instant of the final day.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains returns true if t is within [Start, End].
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Days returns the number of calendar days covered by the interval.
func (i Interval) Days() int {
	return DaysBetween(i.Start, i.End) + 1
}

// Valid reports whether Start <= End.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && !i.End.Before(i.Start)
}

func (i Interval) String() string {
	return "[" + DateKey(i.Start) + ", " + DateKey(i.End) + "]"
}

// =============================================================================
// PERIOD KIND - The recurrence granularity of a goal
// =============================================================================

type PeriodKind string

const (
	PeriodDaily     PeriodKind = "daily"
	PeriodWeekly    PeriodKind = "weekly"
	PeriodMonthly   PeriodKind = "monthly"
	PeriodQuarterly PeriodKind = "quarterly"
)

// PeriodKinds lists every supported period kind.
var PeriodKinds = []PeriodKind{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly}

// Valid reports whether p is one of the known period kinds.
func (p PeriodKind) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly:
		return true
	}
	return false
}

// ParsePeriodKind converts user input into a PeriodKind.
func ParsePeriodKind(s string) (PeriodKind, error) {
	p := PeriodKind(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

// =============================================================================
// PERIOD CALCULATOR
// =============================================================================

// PeriodFor returns the interval of the given kind that contains ref.
// Weeks start on Sunday. An unknown kind is a programming error and panics;
// validate user input with ParsePeriodKind first.
func PeriodFor(kind PeriodKind, ref time.Time) Interval {
	loc := ref.Location()

	switch kind {
	case PeriodDaily:
		return Interval{Start: StartOfDay(ref), End: EndOfDay(ref)}

	case PeriodWeekly:
		start := StartOfDay(ref).AddDate(0, 0, -int(ref.Weekday()))
		return Interval{Start: start, End: EndOfDay(start.AddDate(0, 0, 6))}

	case PeriodMonthly:
		return Interval{
			Start: StartOfMonth(ref.Year(), ref.Month(), loc),
			End:   EndOfMonth(ref.Year(), ref.Month(), loc),
		}

	case PeriodQuarterly:
		quarter := (int(ref.Month()) - 1) / 3
		first := time.Month(quarter*3 + 1)
		return Interval{
			Start: StartOfMonth(ref.Year(), first, loc),
			End:   EndOfMonth(ref.Year(), first+2, loc),
		}
	}

	panic(fmt.Sprintf("goal: unknown period kind %q", kind))
}

// PreviousPeriod returns the period of the same kind immediately before the
// one containing ref.
func PreviousPeriod(kind PeriodKind, ref time.Time) Interval {
	current := PeriodFor(kind, ref)
	return PeriodFor(kind, current.Start.AddDate(0, 0, -1))
}

// CurrentPeriod is PeriodFor evaluated at now.
func CurrentPeriod(kind PeriodKind) Interval {
	return PeriodFor(kind, time.Now())
}
