// Package store provides in-memory implementations of the goal interfaces.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/goal-engine/goal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements goal.Store and goal.OrderRepository.
type Memory struct {
	mu      sync.RWMutex
	goals   map[goal.MetricKind]goal.GoalDefinition
	markers map[goal.MarkerKey]time.Time
	orders  []goal.Order // sorted by CreatedAt
}

func NewMemory() *Memory {
	return &Memory{
		goals:   make(map[goal.MetricKind]goal.GoalDefinition),
		markers: make(map[goal.MarkerKey]time.Time),
	}
}

// -----------------------------------------------------------------------------
// Goals
// -----------------------------------------------------------------------------

func (m *Memory) SaveGoal(_ context.Context, g goal.GoalDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.goals[g.Metric]; ok {
		g.History = existing.History
	} else {
		g.History = append([]goal.ProgressSnapshot(nil), g.History...)
	}
	m.goals[g.Metric] = g
	return nil
}

func (m *Memory) ReplaceGoal(_ context.Context, g goal.GoalDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.History = append([]goal.ProgressSnapshot(nil), g.History...)
	m.goals[g.Metric] = g
	for k := range m.markers {
		if k.Metric == g.Metric {
			delete(m.markers, k)
		}
	}
	return nil
}

func (m *Memory) GetGoal(_ context.Context, metric goal.MetricKind) (*goal.GoalDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.goals[metric]
	if !ok {
		return nil, goal.ErrGoalNotFound
	}
	g.History = append([]goal.ProgressSnapshot(nil), g.History...)
	return &g, nil
}

func (m *Memory) ListGoals(_ context.Context) ([]goal.GoalDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]goal.GoalDefinition, 0, len(m.goals))
	for _, g := range m.goals {
		g.History = append([]goal.ProgressSnapshot(nil), g.History...)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out, nil
}

func (m *Memory) DeleteGoal(_ context.Context, metric goal.MetricKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.goals, metric)
	return nil
}

// AppendSnapshot is first-write-wins per date.
func (m *Memory) AppendSnapshot(_ context.Context, metric goal.MetricKind, s goal.ProgressSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[metric]
	if !ok {
		return false, goal.ErrGoalNotFound
	}
	if _, exists := g.SnapshotFor(s.Date); exists {
		return false, nil
	}
	g.History = append(g.History, s)
	m.goals[metric] = g
	return true, nil
}

// -----------------------------------------------------------------------------
// Markers
// -----------------------------------------------------------------------------

func (m *Memory) LastFired(_ context.Context, key goal.MarkerKey) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.markers[key]
	return at, ok, nil
}

func (m *Memory) RecordFired(_ context.Context, key goal.MarkerKey, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[key] = at
	return nil
}

func (m *Memory) ClearMarkers(_ context.Context, metric goal.MetricKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.markers {
		if k.Metric == metric {
			delete(m.markers, k)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// AddOrders inserts orders keeping CreatedAt order.
func (m *Memory) AddOrders(orders ...goal.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range orders {
		i := sort.Search(len(m.orders), func(i int) bool {
			return m.orders[i].CreatedAt.After(o.CreatedAt)
		})
		m.orders = append(m.orders, goal.Order{})
		copy(m.orders[i+1:], m.orders[i:])
		m.orders[i] = o
	}
}

// QueryOrders returns orders with from <= CreatedAt <= to.
func (m *Memory) QueryOrders(_ context.Context, from, to time.Time) ([]goal.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []goal.Order
	for _, o := range m.orders {
		if o.CreatedAt.Before(from) {
			continue
		}
		if o.CreatedAt.After(to) {
			break
		}
		out = append(out, o)
	}
	return out, nil
}

// Reset drops all goals, markers and orders.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals = make(map[goal.MetricKind]goal.GoalDefinition)
	m.markers = make(map[goal.MarkerKey]time.Time)
	m.orders = nil
}

// =============================================================================
// COLLECTOR - Notifier that keeps everything it receives
// =============================================================================

type Collector struct {
	mu    sync.Mutex
	items []goal.Notification
}

func (c *Collector) Emit(_ context.Context, n goal.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
}

// Notifications returns a copy of everything emitted so far.
func (c *Collector) Notifications() []goal.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]goal.Notification(nil), c.items...)
}

// Kinds returns the emitted kinds in order.
func (c *Collector) Kinds() []goal.NotificationKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]goal.NotificationKind, len(c.items))
	for i, n := range c.items {
		out[i] = n.Kind
	}
	return out
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
