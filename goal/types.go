/*
Package goal provides the goal tracking and forecasting engine.

PURPOSE:
  Defines time-boxed KPI goals (order count or sales total), measures live
  progress against them from order data, projects completion with a linear
  pace model, suggests targets, and drives deduplicated notifications and a
  one-snapshot-per-day analytics history.

KEY CONCEPTS IN THIS FILE (types.go):
  - MetricKind: what is counted (orders) or summed (sales)
  - GoalDefinition: target, period, interval, level, notification policy
  - ProgressSnapshot: one day's recorded progress (history time series)
  - ForecastResult: ephemeral end-of-period projection

DATA FLOW:
  PeriodFor -> ProgressEvaluator -> Forecast -> Dispatcher / Recorder -> rewards.Score

  Engine.RunCycle (engine.go) runs the whole pipeline for every goal.

SEE ALSO:
  - period.go: Period calculator
  - engine.go: Goal lifecycle and evaluation cycle
  - store.go: Collaborator interfaces (orders, persistence, notifications)
*/
package goal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// METRIC KIND
// =============================================================================

type MetricKind string

const (
	MetricOrders MetricKind = "orders" // count of orders
	MetricSales  MetricKind = "sales"  // sum of order totals
)

// MetricKinds lists every supported metric, in display order.
var MetricKinds = []MetricKind{MetricOrders, MetricSales}

func (m MetricKind) Valid() bool { return m == MetricOrders || m == MetricSales }

// ParseMetricKind converts user input into a MetricKind.
func ParseMetricKind(s string) (MetricKind, error) {
	m := MetricKind(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// =============================================================================
// ORGANIZATIONAL LEVEL
// =============================================================================

type Level string

const (
	LevelCompany    Level = "company"
	LevelDepartment Level = "department"
	LevelTeam       Level = "team"
	LevelIndividual Level = "individual"
)

func (l Level) Valid() bool {
	switch l {
	case LevelCompany, LevelDepartment, LevelTeam, LevelIndividual:
		return true
	}
	return false
}

// ParseLevel converts user input into a Level. Empty input means company.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelCompany, nil
	}
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// =============================================================================
// NOTIFICATION POLICY
// =============================================================================

// NotificationPolicy controls which notifications a goal produces.
type NotificationPolicy struct {
	Enabled         bool  `json:"enabled"`
	Milestones      []int `json:"milestones"` // ascending, unique, in (0,100]
	DeadlineWarning bool  `json:"deadlineWarning"`
	DailyUpdate     bool  `json:"dailyUpdate"`
}

// DefaultMilestones are used when a goal is created without explicit milestones.
var DefaultMilestones = []int{25, 50, 75, 100}

// DefaultNotificationPolicy returns the policy applied to new goals.
func DefaultNotificationPolicy() NotificationPolicy {
	return NotificationPolicy{
		Enabled:         true,
		Milestones:      append([]int(nil), DefaultMilestones...),
		DeadlineWarning: true,
		DailyUpdate:     false,
	}
}

// Normalized returns a copy with milestones sorted ascending.
func (p NotificationPolicy) Normalized() NotificationPolicy {
	out := p
	out.Milestones = append([]int(nil), p.Milestones...)
	sort.Ints(out.Milestones)
	return out
}

func (p NotificationPolicy) validate() error {
	seen := make(map[int]bool, len(p.Milestones))
	for _, m := range p.Milestones {
		if m <= 0 || m > 100 {
			return invalid("milestones", "milestone %d outside (0,100]", m)
		}
		if seen[m] {
			return invalid("milestones", "duplicate milestone %d", m)
		}
		seen[m] = true
	}
	return nil
}

// =============================================================================
// GOAL DEFINITION
// =============================================================================

// GoalDefinition is a target for one metric over a bounded interval.
// At most one goal exists per metric kind.
type GoalDefinition struct {
	Metric        MetricKind         `json:"metric"`
	Target        decimal.Decimal    `json:"target"`
	Period        PeriodKind         `json:"period"`
	Interval      Interval           `json:"interval"`
	Level         Level              `json:"level"`
	CreatedAt     time.Time          `json:"createdAt"`
	Notifications NotificationPolicy `json:"notifications"`

	// Append-only; one entry per calendar day.
	History []ProgressSnapshot `json:"history,omitempty"`
}

// Validate checks the goal invariants.
func (g GoalDefinition) Validate() error {
	if !g.Metric.Valid() {
		return invalid("metric", "unknown metric kind %q", g.Metric)
	}
	if !g.Target.IsPositive() {
		return invalid("target", "must be greater than zero, got %s", g.Target)
	}
	if !g.Period.Valid() {
		return invalid("period", "unknown period kind %q", g.Period)
	}
	if !g.Interval.Valid() {
		return invalid("interval", "start must be on or before end")
	}
	if g.Level != "" && !g.Level.Valid() {
		return invalid("level", "unknown level %q", g.Level)
	}
	return g.Notifications.validate()
}

// SnapshotFor returns the history entry for a date key, if present.
func (g GoalDefinition) SnapshotFor(date string) (ProgressSnapshot, bool) {
	for _, s := range g.History {
		if s.Date == date {
			return s, true
		}
	}
	return ProgressSnapshot{}, false
}

// =============================================================================
// PROGRESS SNAPSHOT / FORECAST RESULT
// =============================================================================

// ProgressSnapshot is one day's recorded progress.
type ProgressSnapshot struct {
	Date     string          `json:"date"`     // "2006-01-02"
	Progress float64         `json:"progress"` // 0-100
	Value    decimal.Decimal `json:"value"`
}

// ForecastResult is recomputed every cycle and never persisted.
type ForecastResult struct {
	// Projected end-of-period completion, capped at 100.
	Percentage float64 `json:"percentage"`
	// Same projection without the cap; values above 100 signal overshoot pace.
	RawPercentage float64 `json:"rawPercentage"`
	DaysRemaining int     `json:"daysRemaining"`
	OnTrack       bool    `json:"onTrack"`
	DailyRate     float64 `json:"dailyRate"`
	ExpectedNow   float64 `json:"expectedNow"`
}

// =============================================================================
// ORDER - Record returned by the order repository
// =============================================================================

// Order is a transactional record. Total is untyped because upstream
// repositories may hand back numbers, numeric strings or nothing at all;
// see AmountOf for the coercion rules.
type Order struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Total     any       `json:"total"`
}
