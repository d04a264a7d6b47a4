package goal

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SUGGESTION ENGINE - Target proposals from historical growth
// =============================================================================

var (
	growthDamping     = decimal.RequireFromString("0.3")
	minGrowthRate     = decimal.RequireFromString("0.10")
	maxGrowthRate     = decimal.RequireFromString("0.50")
	defaultGrowthRate = decimal.RequireFromString("0.15")
	weeksPerMonth     = decimal.RequireFromString("4.33")
)

// ScaleToPeriod converts a monthly figure to the length of period p:
// daily /30, weekly /4.33, quarterly x3. Any division happens last so
// results that are whole stay whole.
func ScaleToPeriod(monthly decimal.Decimal, p PeriodKind) decimal.Decimal {
	switch p {
	case PeriodDaily:
		return monthly.Div(decimal.NewFromInt(30))
	case PeriodWeekly:
		return monthly.Div(weeksPerMonth)
	case PeriodQuarterly:
		return monthly.Mul(decimal.NewFromInt(3))
	default:
		return monthly
	}
}

// GrowthRate damps the period-over-period growth by 0.3 and clamps it to
// [0.10, 0.50]. Without a previous baseline the rate is 0.15.
func GrowthRate(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return defaultGrowthRate
	}
	rate := current.Sub(previous).Div(previous).Mul(growthDamping)
	if rate.LessThan(minGrowthRate) {
		return minGrowthRate
	}
	if rate.GreaterThan(maxGrowthRate) {
		return maxGrowthRate
	}
	return rate
}

// SuggestTarget proposes a target for period from the current and previous
// monthly statistics, rounded up to the next integer.
func SuggestTarget(current, previous decimal.Decimal, period PeriodKind) decimal.Decimal {
	rate := GrowthRate(current, previous)
	grown := current.Mul(decimal.NewFromInt(1).Add(rate))
	return ScaleToPeriod(grown, period).Ceil()
}

// Suggestion bundles the growth-based proposal with template pre-fills.
type Suggestion struct {
	Metric     MetricKind           `json:"metric"`
	Period     PeriodKind           `json:"period"`
	Current    decimal.Decimal      `json:"current"`
	Previous   decimal.Decimal      `json:"previous"`
	GrowthRate decimal.Decimal      `json:"growthRate"`
	Value      decimal.Decimal      `json:"value"`
	Templates  []TemplateSuggestion `json:"templates"`
}

// TemplateSuggestion is a template applied to the current statistic.
type TemplateSuggestion struct {
	Template Template        `json:"template"`
	Value    decimal.Decimal `json:"value"`
}

// BuildSuggestion runs both suggestion paths for a metric and period.
// Templates tied to another period are left out.
func BuildSuggestion(metric MetricKind, period PeriodKind, current, previous decimal.Decimal) Suggestion {
	s := Suggestion{
		Metric:     metric,
		Period:     period,
		Current:    current,
		Previous:   previous,
		GrowthRate: GrowthRate(current, previous),
		Value:      SuggestTarget(current, previous, period),
	}
	for _, t := range Templates() {
		if t.Period != "" && t.Period != period {
			continue
		}
		s.Templates = append(s.Templates, TemplateSuggestion{Template: t, Value: t.Apply(current)})
	}
	return s
}
