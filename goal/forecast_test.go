package goal_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
)

func TestForecast_BehindPace(t *testing.T) {
	// GIVEN: a January goal, 40% done at midday Jan 15
	now := date(2025, time.January, 15, 12)

	// WHEN
	f := goal.Forecast(january2025(), 40, now)

	// THEN: 15 of 31 days elapsed
	assert.InDelta(t, 82.667, f.Percentage, 0.01)
	assert.InDelta(t, 48.387, f.ExpectedNow, 0.01)
	assert.Equal(t, 16, f.DaysRemaining)
	assert.False(t, f.OnTrack)
}

func TestForecast_WithinTolerance(t *testing.T) {
	f := goal.Forecast(january2025(), 50, date(2025, time.January, 15, 12))
	assert.True(t, f.OnTrack)
	assert.InDelta(t, 103.33, f.RawPercentage, 0.01)
	assert.Equal(t, 100.0, f.Percentage)
}

func TestForecast_OvershootCapped(t *testing.T) {
	f := goal.Forecast(january2025(), 90, date(2025, time.January, 15, 12))
	assert.Equal(t, 100.0, f.Percentage)
	assert.Greater(t, f.RawPercentage, 100.0)
	assert.True(t, f.OnTrack)
}

func TestForecast_BeforeStart(t *testing.T) {
	f := goal.Forecast(january2025(), 10, date(2024, time.December, 31, 12))
	assert.Equal(t, 0.0, f.Percentage)
	assert.False(t, f.OnTrack)
	assert.Equal(t, 31, f.DaysRemaining)
}

func TestForecast_AtStartInstant(t *testing.T) {
	iv := january2025()
	f := goal.Forecast(iv, 0, iv.Start)
	assert.Equal(t, 0.0, f.Percentage)
	assert.False(t, f.OnTrack)
}

func TestForecast_AfterEndHasNoDaysRemaining(t *testing.T) {
	f := goal.Forecast(january2025(), 70, date(2025, time.February, 5, 0))
	assert.Equal(t, 0, f.DaysRemaining)
	assert.LessOrEqual(t, f.Percentage, 100.0)
}

func TestForecast_ZeroLengthInterval(t *testing.T) {
	at := date(2025, time.January, 1, 0)
	f := goal.Forecast(goal.Interval{Start: at, End: at}, 20, at.Add(time.Hour))
	assert.Equal(t, 0, f.DaysRemaining)
	assert.InDelta(t, 20, f.Percentage, 0.001)
}

func TestForecast_CountsCalendarDaysAcrossDST(t *testing.T) {
	// GIVEN: a November goal in New York, where Nov 2 is 25 hours long
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	november := goal.PeriodFor(goal.PeriodMonthly, time.Date(2025, time.November, 10, 9, 0, 0, 0, ny))
	require.Equal(t, 30, november.Days())

	// WHEN: it is noon on the last day
	f := goal.Forecast(november, 100, time.Date(2025, time.November, 30, 12, 0, 0, 0, ny))

	// THEN: the last day is the 30th of 30, not one day short
	assert.Equal(t, 0, f.DaysRemaining)
	assert.InDelta(t, 100, f.ExpectedNow, 0.0001)
	assert.True(t, f.OnTrack)
}

func TestForecast_SpringForwardDayCountsOnce(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	march := goal.PeriodFor(goal.PeriodMonthly, time.Date(2025, time.March, 3, 9, 0, 0, 0, ny))

	// Mar 9 is 23 hours long; early on Mar 10 ten days have started
	f := goal.Forecast(march, 20, time.Date(2025, time.March, 10, 0, 30, 0, 0, ny))

	assert.Equal(t, 21, f.DaysRemaining)
	assert.InDelta(t, 10.0/31*100, f.ExpectedNow, 0.0001)
}
