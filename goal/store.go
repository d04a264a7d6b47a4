/*
store.go - Interfaces to the engine's external collaborators

PURPOSE:
  The engine holds no process-wide state. Everything it reads or writes
  goes through the interfaces below, injected into Engine.

KEY INTERFACES:
  OrderRepository: Date-range query over transactional orders (read only)
  GoalStore:       Goal definitions keyed by metric + snapshot history
  MarkerStore:     Notification dedup markers keyed by metric:condition
  Notifier:        Fire-and-forget notification sink

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (all four)
  - goal/store/memory.go:   In-memory for tests and demos

SNAPSHOT CONTRACT:
  AppendSnapshot is first-write-wins. A second snapshot for the same
  metric and date is ignored and reported with appended=false.

SEE ALSO:
  - engine.go: Consumer of all interfaces
*/
package goal

import (
	"context"
	"fmt"
	"time"
)

// OrderRepository returns every order created inside [from, to].
// No pagination contract: implementations return all matching records.
type OrderRepository interface {
	QueryOrders(ctx context.Context, from, to time.Time) ([]Order, error)
}

// GoalStore persists goal definitions, one per metric kind.
type GoalStore interface {
	// SaveGoal upserts the definition. Stored history is kept.
	SaveGoal(ctx context.Context, g GoalDefinition) error

	// GetGoal returns the goal with its history, or ErrGoalNotFound.
	GetGoal(ctx context.Context, metric MetricKind) (*GoalDefinition, error)

	// ListGoals returns all goals ordered by metric.
	ListGoals(ctx context.Context) ([]GoalDefinition, error)

	// DeleteGoal removes the goal and its history. Missing goals are not an error.
	DeleteGoal(ctx context.Context, metric MetricKind) error

	// AppendSnapshot adds a history entry unless one exists for that date.
	AppendSnapshot(ctx context.Context, metric MetricKind, s ProgressSnapshot) (appended bool, err error)
}

// MarkerStore persists the last time a notification condition fired.
type MarkerStore interface {
	LastFired(ctx context.Context, key MarkerKey) (at time.Time, ok bool, err error)
	RecordFired(ctx context.Context, key MarkerKey, at time.Time) error
	ClearMarkers(ctx context.Context, metric MetricKind) error
}

// Notifier delivers notifications. There is no acknowledgment contract.
type Notifier interface {
	Emit(ctx context.Context, n Notification)
}

// Store bundles the persistence interfaces implemented by a single backend.
type Store interface {
	GoalStore
	MarkerStore

	// ReplaceGoal stores g as the metric's goal, dropping the previous
	// goal's history and markers. Either all of it applies or none does.
	ReplaceGoal(ctx context.Context, g GoalDefinition) error
}

// MarkerKey identifies one dedup condition of one goal.
type MarkerKey struct {
	Metric    MetricKind
	Kind      NotificationKind
	Threshold int // milestone percentage; zero for other kinds
}

// MilestoneKey returns the marker key for a milestone percentage.
func MilestoneKey(metric MetricKind, milestone int) MarkerKey {
	return MarkerKey{Metric: metric, Kind: KindMilestone, Threshold: milestone}
}

// String renders "metric:milestone" for milestones and "metric:kind" otherwise.
func (k MarkerKey) String() string {
	if k.Kind == KindMilestone {
		return fmt.Sprintf("%s:%d", k.Metric, k.Threshold)
	}
	return fmt.Sprintf("%s:%s", k.Metric, k.Kind)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Emit(ctx context.Context, n Notification) { f(ctx, n) }

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Emit(ctx context.Context, n Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, n)
		}
	}
}
