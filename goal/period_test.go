package goal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
)

func TestPeriodFor_Monthly(t *testing.T) {
	iv := goal.PeriodFor(goal.PeriodMonthly, date(2025, time.January, 15, 12))

	assert.Equal(t, date(2025, time.January, 1, 0), iv.Start)
	assert.Equal(t, "2025-01-31", goal.DateKey(iv.End))
	assert.Equal(t, 23, iv.End.Hour())
	assert.Equal(t, 59, iv.End.Second())
	assert.Equal(t, 31, iv.Days())
}

func TestPeriodFor_MonthlyLeapFebruary(t *testing.T) {
	iv := goal.PeriodFor(goal.PeriodMonthly, date(2024, time.February, 10, 0))
	assert.Equal(t, "2024-02-29", goal.DateKey(iv.End))
	assert.Equal(t, 29, iv.Days())
}

func TestPeriodFor_WeeklyStartsSunday(t *testing.T) {
	// 2025-01-15 is a Wednesday
	iv := goal.PeriodFor(goal.PeriodWeekly, date(2025, time.January, 15, 9))

	assert.Equal(t, "2025-01-12", goal.DateKey(iv.Start))
	assert.Equal(t, time.Sunday, iv.Start.Weekday())
	assert.Equal(t, "2025-01-18", goal.DateKey(iv.End))
	assert.Equal(t, 7, iv.Days())
}

func TestPeriodFor_WeeklyOnSunday(t *testing.T) {
	iv := goal.PeriodFor(goal.PeriodWeekly, date(2025, time.January, 12, 18))
	assert.Equal(t, "2025-01-12", goal.DateKey(iv.Start))
}

func TestPeriodFor_Quarterly(t *testing.T) {
	iv := goal.PeriodFor(goal.PeriodQuarterly, date(2025, time.May, 10, 0))
	assert.Equal(t, "2025-04-01", goal.DateKey(iv.Start))
	assert.Equal(t, "2025-06-30", goal.DateKey(iv.End))

	q4 := goal.PeriodFor(goal.PeriodQuarterly, date(2025, time.December, 31, 23))
	assert.Equal(t, "2025-10-01", goal.DateKey(q4.Start))
	assert.Equal(t, "2025-12-31", goal.DateKey(q4.End))
}

func TestPeriodFor_Daily(t *testing.T) {
	ref := date(2025, time.March, 3, 14)
	iv := goal.PeriodFor(goal.PeriodDaily, ref)
	assert.True(t, iv.Contains(ref))
	assert.Equal(t, goal.DateKey(iv.Start), goal.DateKey(iv.End))
	assert.Equal(t, 1, iv.Days())
}

func TestPeriodFor_ContainsReference(t *testing.T) {
	ref := date(2025, time.August, 31, 23)
	for _, kind := range goal.PeriodKinds {
		iv := goal.PeriodFor(kind, ref)
		assert.True(t, iv.Contains(ref), kind)
		assert.True(t, iv.Valid(), kind)
	}
}

func TestPeriodFor_UnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() { goal.PeriodFor("yearly", time.Now()) })
}

func TestPreviousPeriod(t *testing.T) {
	prev := goal.PreviousPeriod(goal.PeriodMonthly, date(2025, time.March, 31, 10))
	assert.Equal(t, "2025-02-01", goal.DateKey(prev.Start))
	assert.Equal(t, "2025-02-28", goal.DateKey(prev.End))

	prevQ := goal.PreviousPeriod(goal.PeriodQuarterly, date(2025, time.January, 20, 0))
	assert.Equal(t, "2024-10-01", goal.DateKey(prevQ.Start))
	assert.Equal(t, "2024-12-31", goal.DateKey(prevQ.End))

	prevW := goal.PreviousPeriod(goal.PeriodWeekly, date(2025, time.January, 15, 0))
	assert.Equal(t, "2025-01-05", goal.DateKey(prevW.Start))
}

func TestParsePeriodKind(t *testing.T) {
	p, err := goal.ParsePeriodKind(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, goal.PeriodWeekly, p)

	_, err = goal.ParsePeriodKind("yearly")
	assert.ErrorIs(t, err, goal.ErrUnknownPeriod)
}
