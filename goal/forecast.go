/*
forecast.go - End-of-period completion forecast

PURPOSE:
  Extrapolates the current pace linearly to the end of the goal interval
  and decides whether the goal is on track.

MODEL:
  totalDays     = calendar days in [start, end], at least 1
  daysElapsed   = calendar days from start through now's day, the
                  current day counting once it has begun
  daysRemaining = max(0, totalDays - daysElapsed)

  dailyRate   = progress / daysElapsed
  projected   = min(dailyRate * totalDays, 100)
  expectedNow = daysElapsed / totalDays * 100
  onTrack     = progress >= expectedNow * 0.9

  Days are calendar days in the interval's location, not 24h spans, so
  DST transitions do not add or drop a day.
  No seasonality and no weighting of recent days.

EXAMPLE:
  Jan 1-31 goal, 40% done at midday Jan 15:
    totalDays=31, daysElapsed=15, dailyRate=2.67, projected=82.7
    expectedNow=48.4, threshold=43.5 -> not on track
*/
package goal

import (
	"math"
	"time"
)

// OnTrackTolerance is the grace band below linear expectation.
const OnTrackTolerance = 0.9

// Forecast projects completion for a goal with the given clamped progress
// percentage at instant now.
func Forecast(interval Interval, progress float64, now time.Time) ForecastResult {
	totalDays := interval.Days()
	if totalDays <= 0 {
		totalDays = 1
	}
	daysElapsed := DaysStarted(interval.Start, now)
	daysRemaining := totalDays - daysElapsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	if daysElapsed <= 0 {
		return ForecastResult{Percentage: 0, DaysRemaining: daysRemaining, OnTrack: false}
	}

	dailyRate := progress / float64(daysElapsed)
	raw := dailyRate * float64(totalDays)
	expected := float64(daysElapsed) / float64(totalDays) * 100

	return ForecastResult{
		Percentage:    math.Min(raw, 100),
		RawPercentage: raw,
		DaysRemaining: daysRemaining,
		OnTrack:       progress >= expected*OnTrackTolerance,
		DailyRate:     dailyRate,
		ExpectedNow:   expected,
	}
}
