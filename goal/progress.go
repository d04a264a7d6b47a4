package goal

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// PROGRESS EVALUATOR - Aggregates orders inside a goal's interval
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Progress is the result of one evaluation.
type Progress struct {
	Metric MetricKind      `json:"metric"`
	Value  decimal.Decimal `json:"value"`
	// Clamped to [0, 100].
	Percentage float64 `json:"percentage"`
	// Unclamped value/target*100, visible for overshoot detection.
	RawPercentage float64 `json:"rawPercentage"`
	Records       int     `json:"records"`
	// Set when the order repository failed; the reading is zero.
	Unavailable bool `json:"unavailable,omitempty"`
}

// Completed reports whether the goal target has been reached.
func (p Progress) Completed() bool { return p.Percentage >= 100 }

// ProgressEvaluator reads orders and turns them into progress.
type ProgressEvaluator struct {
	Orders OrderRepository
	Logger logrus.FieldLogger

	// QueryTimeout bounds the repository call. Zero means no bound.
	QueryTimeout time.Duration

	Observer Observer
}

// Evaluate computes progress for g. It never returns an error: a failed
// repository query is logged and reported as a zero, Unavailable reading so
// a refresh cycle keeps going.
func (pe *ProgressEvaluator) Evaluate(ctx context.Context, g GoalDefinition) Progress {
	if pe.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pe.QueryTimeout)
		defer cancel()
	}

	orders, err := pe.Orders.QueryOrders(ctx, g.Interval.Start, g.Interval.End)
	if err != nil {
		pe.logger().WithError(err).WithFields(logrus.Fields{
			"metric":   g.Metric,
			"interval": g.Interval.String(),
		}).Warn("Order query failed, reporting zero progress")
		orNop(pe.Observer).RepositoryError(g.Metric)
		return Progress{Metric: g.Metric, Value: decimal.Zero, Unavailable: true}
	}

	value := MetricValue(g.Metric, orders)
	raw := Percentage(value, g.Target)

	return Progress{
		Metric:        g.Metric,
		Value:         value,
		Percentage:    clampPercent(raw),
		RawPercentage: raw,
		Records:       len(orders),
	}
}

func (pe *ProgressEvaluator) logger() logrus.FieldLogger {
	if pe.Logger == nil {
		return logrus.StandardLogger()
	}
	return pe.Logger
}

// MetricValue aggregates orders for a metric: a count for orders, the sum
// of coerced totals for sales.
func MetricValue(metric MetricKind, orders []Order) decimal.Decimal {
	if metric == MetricOrders {
		return decimal.NewFromInt(int64(len(orders)))
	}
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(AmountOf(o.Total))
	}
	return sum
}

// Percentage returns value/target*100 without clamping. A non-positive
// target yields zero.
func Percentage(value, target decimal.Decimal) float64 {
	if !target.IsPositive() {
		return 0
	}
	return value.Div(target).Mul(hundred).InexactFloat64()
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// AmountOf coerces an order total to a decimal. Missing or non-numeric
// values contribute zero.
func AmountOf(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero
		}
		return *t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case float32:
		return AmountOf(float64(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case int32:
		return decimal.NewFromInt32(t)
	case json.Number:
		return parseAmount(string(t))
	case string:
		return parseAmount(t)
	}
	return decimal.Zero
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
