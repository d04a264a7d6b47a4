package goal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// ANALYTICS RECORDER - One progress snapshot per goal per calendar day
// =============================================================================

// Recorder appends daily snapshots to a goal's history.
type Recorder struct {
	Goals    GoalStore
	Logger   logrus.FieldLogger
	Observer Observer
}

// Record appends today's snapshot to g.History unless one already exists.
// The first write of the day wins; later values for the same day are
// dropped. A store failure is logged and the in-memory entry is kept.
func (r *Recorder) Record(ctx context.Context, g *GoalDefinition, p Progress, now time.Time) bool {
	today := DateKey(now)
	if _, exists := g.SnapshotFor(today); exists {
		return false
	}

	snap := ProgressSnapshot{Date: today, Progress: p.Percentage, Value: p.Value}
	g.History = append(g.History, snap)

	appended, err := r.Goals.AppendSnapshot(ctx, g.Metric, snap)
	if err != nil {
		r.logger().WithError(err).WithFields(logrus.Fields{
			"metric": g.Metric,
			"date":   today,
		}).Error("Failed to persist progress snapshot")
		orNop(r.Observer).StoreError("snapshot_write")
		return true
	}
	if appended {
		orNop(r.Observer).SnapshotRecorded(g.Metric)
	}
	return true
}

func (r *Recorder) logger() logrus.FieldLogger {
	if r.Logger == nil {
		return logrus.StandardLogger()
	}
	return r.Logger
}

// HistorySummary describes a snapshot series.
type HistorySummary struct {
	Days             int               `json:"days"`
	Latest           *ProgressSnapshot `json:"latest,omitempty"`
	AverageDailyGain float64           `json:"averageDailyGain"`
	BestDay          *ProgressSnapshot `json:"bestDay,omitempty"`
	BestDayGain      float64           `json:"bestDayGain"`
}

// Summarize computes trend figures over a history. Gains are measured in
// percentage points between consecutive snapshots.
func Summarize(history []ProgressSnapshot) HistorySummary {
	s := HistorySummary{Days: len(history)}
	if len(history) == 0 {
		return s
	}
	latest := history[len(history)-1]
	s.Latest = &latest

	if len(history) == 1 {
		return s
	}

	var total float64
	for i := 1; i < len(history); i++ {
		gain := history[i].Progress - history[i-1].Progress
		total += gain
		if s.BestDay == nil || gain > s.BestDayGain {
			best := history[i]
			s.BestDay = &best
			s.BestDayGain = gain
		}
	}
	s.AverageDailyGain = total / float64(len(history)-1)
	return s
}

// ValueDeltas returns day-over-day changes of the raw metric value.
func ValueDeltas(history []ProgressSnapshot) []decimal.Decimal {
	if len(history) < 2 {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		out = append(out, history[i].Value.Sub(history[i-1].Value))
	}
	return out
}
