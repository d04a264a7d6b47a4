package goal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/goal/store"
)

func TestRecorder_FirstWriteOfTheDayWins(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	g := ordersGoal("100")
	require.NoError(t, mem.SaveGoal(ctx, g))

	obs := newCountingObserver()
	rec := &goal.Recorder{Goals: mem, Logger: quietLogger(), Observer: obs}
	morning := date(2025, time.January, 10, 8)

	assert.True(t, rec.Record(ctx, &g, goal.Progress{Percentage: 20, Value: dec("20")}, morning))
	assert.False(t, rec.Record(ctx, &g, goal.Progress{Percentage: 35, Value: dec("35")}, morning.Add(8*time.Hour)))
	assert.True(t, rec.Record(ctx, &g, goal.Progress{Percentage: 40, Value: dec("40")}, morning.Add(24*time.Hour)))

	stored, err := mem.GetGoal(ctx, g.Metric)
	require.NoError(t, err)
	require.Len(t, stored.History, 2)
	assert.Equal(t, "2025-01-10", stored.History[0].Date)
	assert.Equal(t, 20.0, stored.History[0].Progress)
	assert.Equal(t, "2025-01-11", stored.History[1].Date)
	assert.Equal(t, 2, obs.snapshots)
	assert.Equal(t, g.History, stored.History)
}

func TestRecorder_StoreSideDuplicateIgnored(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	g := ordersGoal("100")
	require.NoError(t, mem.SaveGoal(ctx, g))
	now := date(2025, time.January, 10, 8)

	// A second engine instance wrote first; this copy's history is stale.
	_, err := mem.AppendSnapshot(ctx, g.Metric, goal.ProgressSnapshot{Date: "2025-01-10", Progress: 5, Value: dec("5")})
	require.NoError(t, err)

	obs := newCountingObserver()
	rec := &goal.Recorder{Goals: mem, Observer: obs}
	rec.Record(ctx, &g, goal.Progress{Percentage: 50, Value: dec("50")}, now)

	stored, err := mem.GetGoal(ctx, g.Metric)
	require.NoError(t, err)
	require.Len(t, stored.History, 1)
	assert.Equal(t, 5.0, stored.History[0].Progress)
	assert.Zero(t, obs.snapshots)
}

func TestRecorder_StoreFailureKeepsEntryInMemory(t *testing.T) {
	// GIVEN: a store that rejects snapshot writes for orders
	ctx := context.Background()
	mem := store.NewMemory()
	g := ordersGoal("100")
	require.NoError(t, mem.SaveGoal(ctx, g))
	obs := newCountingObserver()
	rec := &goal.Recorder{
		Goals:    &brokenStore{Memory: mem, failSnapshotsFor: goal.MetricOrders},
		Logger:   quietLogger(),
		Observer: obs,
	}

	// WHEN
	recorded := rec.Record(ctx, &g, goal.Progress{Percentage: 20, Value: dec("20")}, date(2025, time.January, 10, 8))

	// THEN: the day counts as recorded and the failure is reported
	assert.True(t, recorded)
	require.Len(t, g.History, 1)
	assert.Equal(t, "2025-01-10", g.History[0].Date)
	assert.Equal(t, []string{"snapshot_write"}, obs.storeErrors)
	assert.Zero(t, obs.snapshots)

	stored, err := mem.GetGoal(ctx, g.Metric)
	require.NoError(t, err)
	assert.Empty(t, stored.History)
}

func TestSummarize(t *testing.T) {
	history := []goal.ProgressSnapshot{
		{Date: "2025-01-01", Progress: 0, Value: dec("0")},
		{Date: "2025-01-02", Progress: 10, Value: dec("10")},
		{Date: "2025-01-03", Progress: 40, Value: dec("40")},
		{Date: "2025-01-04", Progress: 45, Value: dec("45")},
	}

	s := goal.Summarize(history)

	assert.Equal(t, 4, s.Days)
	require.NotNil(t, s.Latest)
	assert.Equal(t, "2025-01-04", s.Latest.Date)
	assert.InDelta(t, 15, s.AverageDailyGain, 0.0001)
	require.NotNil(t, s.BestDay)
	assert.Equal(t, "2025-01-03", s.BestDay.Date)
	assert.Equal(t, 30.0, s.BestDayGain)

	deltas := goal.ValueDeltas(history)
	require.Len(t, deltas, 3)
	assert.Equal(t, "30", deltas[1].String())
}

func TestSummarize_Empty(t *testing.T) {
	s := goal.Summarize(nil)
	assert.Zero(t, s.Days)
	assert.Nil(t, s.Latest)
	assert.Nil(t, goal.ValueDeltas(nil))
}
