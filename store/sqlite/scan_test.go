package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
)

func newCorruptStore(t *testing.T, stmts ...string) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	for _, stmt := range stmts {
		_, err := s.db.Exec(stmt)
		require.NoError(t, err)
	}
	return s
}

func TestLoadSnapshots_UnparseableValue(t *testing.T) {
	// GIVEN: a snapshot row whose value is not a number
	s := newCorruptStore(t,
		`INSERT INTO goal_snapshots (metric, date, progress, value, created_at)
		 VALUES ('sales', '2025-01-02', 12, 'twelve', '2025-01-02T00:00:00Z')`,
	)

	// WHEN
	_, err := s.loadSnapshots(context.Background(), goal.MetricSales)

	// THEN: the row is reported instead of read back as zero
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twelve")
}

func TestRecentOrders_UnparseableCreatedAt(t *testing.T) {
	s := newCorruptStore(t,
		`INSERT INTO orders (id, created_at, total) VALUES ('o-1', 'yesterday', '10')`,
	)

	_, err := s.RecentOrders(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "o-1")
}

func TestNotifications_UnparseableCreatedAt(t *testing.T) {
	s := newCorruptStore(t,
		`INSERT INTO notifications (id, kind, metric, message, severity, milestone, created_at)
		 VALUES ('n-1', 'milestone', 'orders', '25%', 'info', 25, 'not-a-time')`,
	)

	_, err := s.Notifications(context.Background(), "", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n-1")
}
