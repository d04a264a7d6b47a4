/*
Package factory converts stored goal records into goal.GoalDefinition.

PURPOSE:
  Goal records have been persisted in three shapes over time. The factory
  recognises each shape once, at load time, and hands the engine a
  validated GoalDefinition. Nothing downstream inspects raw records.

SCHEMA VERSIONS:
  legacy   a bare target number (or numeric string), stored under the
           metric key. Period is monthly, interval is the current month.

             500

  v1       object without a version field. Dates are YYYY-MM-DD.

             {"target": 500, "period": "weekly",
              "startDate": "2025-01-05", "endDate": "2025-01-11"}

  v2       current shape, written by ToJSON/Encode.

             {"version": 2, "metric": "sales", "target": "1500.00",
              "period": "monthly", "startDate": "2025-01-01",
              "endDate": "2025-01-31", "level": "team",
              "createdAt": "2025-01-01T09:00:00Z",
              "notifications": {"enabled": true, "milestones": [25,50,75,100],
                                "deadlineWarning": true, "dailyUpdate": false},
              "history": [{"date": "2025-01-01", "progress": 3.5, "value": "52.5"}]}

  Missing fields in v1 take the defaults of a newly created goal. Any
  other shape, or a version above CurrentVersion, is ErrUnsupportedSchema.

USAGE:
  f := factory.NewGoalFactory()
  g, err := f.Migrate(goal.MetricSales, raw)
  raw, err = f.Encode(*g)

SEE ALSO:
  - store/sqlite/sqlite.go: Stores Encode output and loads through Migrate
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/goal-engine/goal"
)

// CurrentVersion is the schema version written by Encode.
const CurrentVersion = 2

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// GoalJSON is the stored representation of a goal (v1 and v2).
type GoalJSON struct {
	Version       int                      `json:"version,omitempty"`
	Metric        string                   `json:"metric,omitempty"`
	Target        decimal.Decimal          `json:"target"`
	Period        string                   `json:"period,omitempty"`
	StartDate     string                   `json:"startDate,omitempty"`
	EndDate       string                   `json:"endDate,omitempty"`
	Level         string                   `json:"level,omitempty"`
	CreatedAt     *time.Time               `json:"createdAt,omitempty"`
	Notifications *goal.NotificationPolicy `json:"notifications,omitempty"`
	History       []goal.ProgressSnapshot  `json:"history,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

// GoalFactory migrates and encodes goal records.
type GoalFactory struct {
	// Location interprets date-only fields. Defaults to time.Local.
	Location *time.Location
	// Now anchors legacy records to a period. Defaults to time.Now.
	Now func() time.Time
}

func NewGoalFactory() *GoalFactory {
	return &GoalFactory{Location: time.Local, Now: time.Now}
}

// Migrate parses any supported record shape stored under metric.
func (f *GoalFactory) Migrate(metric goal.MetricKind, raw []byte) (*goal.GoalDefinition, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty record", goal.ErrUnsupportedSchema)
	}

	switch raw[0] {
	case '{':
		var gj GoalJSON
		if err := json.Unmarshal(raw, &gj); err != nil {
			return nil, fmt.Errorf("%w: %v", goal.ErrUnsupportedSchema, err)
		}
		if gj.Version > CurrentVersion {
			return nil, fmt.Errorf("%w: version %d", goal.ErrUnsupportedSchema, gj.Version)
		}
		return f.FromJSON(metric, gj)

	case '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var target decimal.Decimal
		if err := json.Unmarshal(raw, &target); err != nil {
			return nil, fmt.Errorf("%w: legacy target: %v", goal.ErrUnsupportedSchema, err)
		}
		return f.fromLegacy(metric, target)
	}

	return nil, fmt.Errorf("%w: unrecognised record %.20q", goal.ErrUnsupportedSchema, raw)
}

// FromJSON builds a goal from a v1 or v2 record.
func (f *GoalFactory) FromJSON(metric goal.MetricKind, gj GoalJSON) (*goal.GoalDefinition, error) {
	if gj.Metric != "" && goal.MetricKind(gj.Metric) != metric {
		return nil, fmt.Errorf("%w: record for %q stored under %q", goal.ErrUnsupportedSchema, gj.Metric, metric)
	}

	period := goal.PeriodMonthly
	if gj.Period != "" {
		p, err := goal.ParsePeriodKind(gj.Period)
		if err != nil {
			return nil, err
		}
		period = p
	}

	level, err := goal.ParseLevel(gj.Level)
	if err != nil {
		return nil, err
	}

	interval := goal.PeriodFor(period, f.now())
	if gj.StartDate != "" || gj.EndDate != "" {
		start, err := f.parseDay(gj.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: startDate: %v", goal.ErrUnsupportedSchema, err)
		}
		end, err := f.parseDay(gj.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: endDate: %v", goal.ErrUnsupportedSchema, err)
		}
		interval = goal.Interval{Start: goal.StartOfDay(start), End: goal.EndOfDay(end)}
	}

	createdAt := interval.Start
	if gj.CreatedAt != nil {
		createdAt = *gj.CreatedAt
	}

	policy := goal.DefaultNotificationPolicy()
	if gj.Notifications != nil {
		policy = gj.Notifications.Normalized()
	}

	g := &goal.GoalDefinition{
		Metric:        metric,
		Target:        gj.Target,
		Period:        period,
		Interval:      interval,
		Level:         level,
		CreatedAt:     createdAt,
		Notifications: policy,
		History:       gj.History,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (f *GoalFactory) fromLegacy(metric goal.MetricKind, target decimal.Decimal) (*goal.GoalDefinition, error) {
	now := f.now()
	interval := goal.PeriodFor(goal.PeriodMonthly, now)
	g := &goal.GoalDefinition{
		Metric:        metric,
		Target:        target,
		Period:        goal.PeriodMonthly,
		Interval:      interval,
		Level:         goal.LevelCompany,
		CreatedAt:     interval.Start,
		Notifications: goal.DefaultNotificationPolicy(),
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// ToJSON renders g in the current schema.
func (f *GoalFactory) ToJSON(g goal.GoalDefinition) GoalJSON {
	created := g.CreatedAt
	policy := g.Notifications.Normalized()
	return GoalJSON{
		Version:       CurrentVersion,
		Metric:        string(g.Metric),
		Target:        g.Target,
		Period:        string(g.Period),
		StartDate:     goal.DateKey(g.Interval.Start),
		EndDate:       goal.DateKey(g.Interval.End),
		Level:         string(g.Level),
		CreatedAt:     &created,
		Notifications: &policy,
		History:       g.History,
	}
}

// Encode marshals g in the current schema.
func (f *GoalFactory) Encode(g goal.GoalDefinition) ([]byte, error) {
	return json.Marshal(f.ToJSON(g))
}

func (f *GoalFactory) parseDay(s string) (time.Time, error) {
	if t, err := goal.ParseDate(s, f.location()); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(f.location()), nil
}

func (f *GoalFactory) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

func (f *GoalFactory) now() time.Time {
	if f.Now == nil {
		return time.Now().In(f.location())
	}
	return f.Now().In(f.location())
}
