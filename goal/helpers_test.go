package goal_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/goal/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func date(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func january2025() goal.Interval {
	return goal.PeriodFor(goal.PeriodMonthly, date(2025, time.January, 15, 12))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ordersOn builds n orders at the given time, each with the given total.
func ordersOn(at time.Time, n int, total any) []goal.Order {
	out := make([]goal.Order, n)
	for i := range out {
		out[i] = goal.Order{ID: fmt.Sprintf("%s-%d", goal.DateKey(at), i), CreatedAt: at, Total: total}
	}
	return out
}

func ordersGoal(target string) goal.GoalDefinition {
	return goal.GoalDefinition{
		Metric:        goal.MetricOrders,
		Target:        dec(target),
		Period:        goal.PeriodMonthly,
		Interval:      january2025(),
		Level:         goal.LevelCompany,
		CreatedAt:     date(2025, time.January, 1, 0),
		Notifications: goal.DefaultNotificationPolicy(),
	}
}

// failingOrders is an OrderRepository that always errors.
type failingOrders struct{}

func (failingOrders) QueryOrders(context.Context, time.Time, time.Time) ([]goal.Order, error) {
	return nil, errors.New("connection refused")
}

// blockingOrders holds every query until release is closed.
type blockingOrders struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingOrders() *blockingOrders {
	return &blockingOrders{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingOrders) QueryOrders(ctx context.Context, _, _ time.Time) ([]goal.Order, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// countingObserver records observer callbacks.
type countingObserver struct {
	mu            sync.Mutex
	cycles        int
	skipped       int
	notifications map[goal.NotificationKind]int
	snapshots     int
	repoErrors    int
	storeErrors   []string
}

func newCountingObserver() *countingObserver {
	return &countingObserver{notifications: make(map[goal.NotificationKind]int)}
}

func (o *countingObserver) CycleCompleted(time.Duration, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles++
}

func (o *countingObserver) CycleSkipped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func (o *countingObserver) NotificationEmitted(kind goal.NotificationKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifications[kind]++
}

func (o *countingObserver) SnapshotRecorded(goal.MetricKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots++
}

func (o *countingObserver) RepositoryError(goal.MetricKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repoErrors++
}

func (o *countingObserver) StoreError(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.storeErrors = append(o.storeErrors, op)
}

// flakyMarkers is a MarkerStore whose reads or writes fail on demand.
type flakyMarkers struct {
	goal.MarkerStore
	failReads  bool
	failWrites bool
}

func (f *flakyMarkers) LastFired(ctx context.Context, key goal.MarkerKey) (time.Time, bool, error) {
	if f.failReads {
		return time.Time{}, false, errors.New("marker table locked")
	}
	return f.MarkerStore.LastFired(ctx, key)
}

func (f *flakyMarkers) RecordFired(ctx context.Context, key goal.MarkerKey, at time.Time) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MarkerStore.RecordFired(ctx, key, at)
}

// brokenStore is a Memory whose goal writes or snapshot appends fail on demand.
type brokenStore struct {
	*store.Memory
	failGoalWrites   bool
	failSnapshotsFor goal.MetricKind
}

func (b *brokenStore) SaveGoal(ctx context.Context, g goal.GoalDefinition) error {
	if b.failGoalWrites {
		return errors.New("disk full")
	}
	return b.Memory.SaveGoal(ctx, g)
}

func (b *brokenStore) ReplaceGoal(ctx context.Context, g goal.GoalDefinition) error {
	if b.failGoalWrites {
		return errors.New("disk full")
	}
	return b.Memory.ReplaceGoal(ctx, g)
}

func (b *brokenStore) AppendSnapshot(ctx context.Context, metric goal.MetricKind, s goal.ProgressSnapshot) (bool, error) {
	if metric == b.failSnapshotsFor {
		return false, errors.New("disk full")
	}
	return b.Memory.AppendSnapshot(ctx, metric, s)
}

// outageFrom fails order queries whose window starts at from.
type outageFrom struct {
	goal.OrderRepository
	from time.Time
}

func (o outageFrom) QueryOrders(ctx context.Context, from, to time.Time) ([]goal.Order, error) {
	if from.Equal(o.from) {
		return nil, errors.New("replica unavailable")
	}
	return o.OrderRepository.QueryOrders(ctx, from, to)
}
