package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/metrics"
)

func TestPrometheusObserver_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := metrics.NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	obs.CycleCompleted(150*time.Millisecond, 2)
	obs.CycleSkipped()
	obs.NotificationEmitted(goal.KindMilestone)
	obs.NotificationEmitted(goal.KindMilestone)
	obs.NotificationEmitted(goal.KindDeadline)
	obs.SnapshotRecorded(goal.MetricSales)
	obs.RepositoryError(goal.MetricOrders)
	obs.StoreError("marker_write")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_cycle_duration_seconds"])
	assert.True(t, names["test_notifications_total"])
	assert.True(t, names["test_goals_tracked"])

	count, err := testutil.GatherAndCount(reg, "test_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per kind")
}

func TestPrometheusObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.NewPrometheusObserver("dup", reg)
	require.NoError(t, err)
	second, err := metrics.NewPrometheusObserver("dup", reg)
	require.NoError(t, err)

	first.CycleSkipped()
	second.CycleSkipped()

	count, err := testutil.GatherAndCount(reg, "dup_cycles_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
