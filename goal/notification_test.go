package goal_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/goal/store"
)

type dispatchFixture struct {
	mem  *store.Memory
	sink *store.Collector
	obs  *countingObserver
	disp *goal.Dispatcher
	goal goal.GoalDefinition
	ctx  context.Context
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		mem:  store.NewMemory(),
		sink: &store.Collector{},
		obs:  newCountingObserver(),
		goal: ordersGoal("100"),
		ctx:  context.Background(),
	}
	f.disp = &goal.Dispatcher{
		Markers:  f.mem,
		Sink:     f.sink,
		Config:   goal.DefaultDispatcherConfig(),
		Logger:   quietLogger(),
		Observer: f.obs,
	}
	return f
}

// dispatch evaluates the fixture goal at the given percentage and time.
func (f *dispatchFixture) dispatch(pct float64, now time.Time) []goal.Notification {
	p := goal.Progress{
		Metric:     f.goal.Metric,
		Value:      f.goal.Target.Mul(decimal.NewFromFloat(pct / 100)),
		Percentage: pct,
	}
	fc := goal.Forecast(f.goal.Interval, pct, now)
	return f.disp.Dispatch(f.ctx, f.goal, p, fc, now)
}

func kinds(ns []goal.Notification) []goal.NotificationKind {
	out := make([]goal.NotificationKind, len(ns))
	for i, n := range ns {
		out[i] = n.Kind
	}
	return out
}

func TestDispatch_MilestonesFireOncePerWindow(t *testing.T) {
	// GIVEN: 60% done mid-month, on track
	f := newDispatchFixture()
	now := date(2025, time.January, 15, 12)

	// WHEN
	first := f.dispatch(60, now)

	// THEN: 25 and 50 fire, in ascending order
	require.Len(t, first, 2)
	assert.Equal(t, 25, first[0].Milestone)
	assert.Equal(t, 50, first[1].Milestone)
	assert.Equal(t, goal.SeverityInfo, first[0].Severity)
	assert.NotEmpty(t, first[0].ID)
	assert.Len(t, f.sink.Notifications(), 2)

	// WHEN: re-evaluated an hour later
	assert.Empty(t, f.dispatch(60, now.Add(time.Hour)))

	// WHEN: more than a day later the milestones are still reached
	again := f.dispatch(60, now.Add(25*time.Hour))
	assert.Len(t, again, 2)
	assert.Equal(t, 4, f.obs.notifications[goal.KindMilestone])
}

func TestDispatch_MilestoneOnce(t *testing.T) {
	f := newDispatchFixture()
	f.disp.Config.MilestoneOnce = true
	now := date(2025, time.January, 15, 12)

	require.Len(t, f.dispatch(30, now), 1)
	assert.Empty(t, f.dispatch(30, now.Add(72*time.Hour)))
}

func TestDispatch_CompletionIsSuccess(t *testing.T) {
	f := newDispatchFixture()
	ns := f.dispatch(100, date(2025, time.January, 20, 8))

	require.Len(t, ns, 4)
	last := ns[len(ns)-1]
	assert.Equal(t, 100, last.Milestone)
	assert.Equal(t, goal.SeveritySuccess, last.Severity)
}

func TestDispatch_DeadlineWarning(t *testing.T) {
	// GIVEN: 2 days left at 80%
	f := newDispatchFixture()
	now := date(2025, time.January, 29, 12)

	ns := f.dispatch(80, now)

	assert.Equal(t, []goal.NotificationKind{
		goal.KindMilestone, goal.KindMilestone, goal.KindMilestone, goal.KindDeadline,
	}, kinds(ns))
	assert.Equal(t, goal.SeverityWarning, ns[3].Severity)
	assert.Contains(t, ns[3].Message, "2 day(s)")
}

func TestDispatch_DeadlineSkippedWhenComplete(t *testing.T) {
	f := newDispatchFixture()
	ns := f.dispatch(100, date(2025, time.January, 30, 12))
	assert.NotContains(t, kinds(ns), goal.KindDeadline)
}

func TestDispatch_DeadlineDisabledByPolicy(t *testing.T) {
	f := newDispatchFixture()
	f.goal.Notifications.DeadlineWarning = false
	ns := f.dispatch(10, date(2025, time.January, 30, 12))
	assert.NotContains(t, kinds(ns), goal.KindDeadline)
}

func TestDispatch_OffTrack(t *testing.T) {
	// GIVEN: 5 days left, only 30% done
	f := newDispatchFixture()
	now := date(2025, time.January, 26, 12)

	ns := f.dispatch(30, now)

	assert.Equal(t, []goal.NotificationKind{goal.KindMilestone, goal.KindOffTrack}, kinds(ns))
	assert.Equal(t, goal.SeverityError, ns[1].Severity)
}

func TestDispatch_WarningsThrottled(t *testing.T) {
	f := newDispatchFixture()
	now := date(2025, time.January, 26, 12)
	f.dispatch(30, now)

	ns := f.dispatch(30, now.Add(time.Hour))
	assert.Empty(t, ns)
}

func TestDispatch_WarningsUnthrottled(t *testing.T) {
	f := newDispatchFixture()
	f.disp.Config.ThrottleWarnings = false
	now := date(2025, time.January, 26, 12)
	f.dispatch(30, now)

	ns := f.dispatch(30, now.Add(time.Hour))
	assert.Equal(t, []goal.NotificationKind{goal.KindOffTrack}, kinds(ns))
}

func TestDispatch_DisabledPolicy(t *testing.T) {
	f := newDispatchFixture()
	f.goal.Notifications.Enabled = false
	assert.Empty(t, f.dispatch(100, date(2025, time.January, 30, 12)))
	assert.Empty(t, f.sink.Notifications())
}

func TestDispatch_DailyUpdateOncePerDate(t *testing.T) {
	f := newDispatchFixture()
	f.goal.Notifications.DailyUpdate = true
	now := date(2025, time.January, 15, 12)

	assert.Equal(t, []goal.NotificationKind{goal.KindDaily}, kinds(f.dispatch(10, now)))
	assert.Empty(t, f.dispatch(10, now.Add(6*time.Hour)))
	assert.Equal(t, []goal.NotificationKind{goal.KindDaily}, kinds(f.dispatch(10, now.Add(13*time.Hour))))
}

func TestDispatch_MarkerReadFailureStillFires(t *testing.T) {
	f := newDispatchFixture()
	f.disp.Markers = &flakyMarkers{MarkerStore: f.mem, failReads: true}
	now := date(2025, time.January, 15, 12)

	assert.Len(t, f.dispatch(30, now), 1)
	assert.Len(t, f.dispatch(30, now.Add(time.Minute)), 1)
	assert.Contains(t, f.obs.storeErrors, "marker_read")
}

func TestDispatch_MarkerWriteFailureLogged(t *testing.T) {
	f := newDispatchFixture()
	f.disp.Markers = &flakyMarkers{MarkerStore: f.mem, failWrites: true}

	ns := f.dispatch(30, date(2025, time.January, 15, 12))

	assert.Len(t, ns, 1)
	assert.Equal(t, []string{"marker_write"}, f.obs.storeErrors)
}

func TestMarkerKey_String(t *testing.T) {
	assert.Equal(t, "orders:50", goal.MilestoneKey(goal.MetricOrders, 50).String())
	assert.Equal(t, "sales:deadline", goal.MarkerKey{Metric: goal.MetricSales, Kind: goal.KindDeadline}.String())
}
