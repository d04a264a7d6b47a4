/*
engine.go - Goal lifecycle and the evaluation cycle

PURPOSE:
  Engine is the entry point used by the API, the scheduler and the CLI.
  It owns goal lifecycle operations (set, reset, edit, clear) and runs the
  evaluation cycle that ties every component together.

EVALUATION CYCLE (RunCycle):
  For every stored goal, in one pass:
    1. ProgressEvaluator.Evaluate  (the only I/O-bound step)
    2. Forecast
    3. Dispatcher.Dispatch         (skipped when orders were unavailable)
    4. Recorder.Record             (skipped when orders were unavailable)
  then rewards.Leaderboard over the results.

  A zero reading caused by a repository failure is never dispatched or
  recorded: first-write-wins would otherwise freeze a bogus 0% snapshot
  for the whole day.

CYCLE GUARD:
  Only one cycle runs at a time. An overlapping call returns immediately
  with Skipped=true and ErrCycleInProgress, so notification markers are
  never raced.

LIFECYCLE:
  SetGoal    replaces any goal for the metric (history and markers cleared)
  ResetGoal  moves the goal to the current period, same target
  EditGoal   changes target, level or notification policy in place
  ClearGoal  deletes the goal, its history and its markers
*/
package goal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/goal-engine/rewards"
)

// EngineConfig holds the engine's collaborators.
type EngineConfig struct {
	Store  Store
	Orders OrderRepository
	Sink   Notifier

	Logger       logrus.FieldLogger
	Observer     Observer
	Dispatcher   DispatcherConfig
	QueryTimeout time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Engine runs goal operations against injected stores.
type Engine struct {
	store  Store
	orders OrderRepository
	clock  func() time.Time
	logger logrus.FieldLogger
	obs    Observer

	evaluator  *ProgressEvaluator
	dispatcher *Dispatcher
	recorder   *Recorder

	running atomic.Bool

	mu   sync.RWMutex
	last *CycleResult
}

// NewEngine wires the components. A zero Dispatcher config gets defaults.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	dcfg := cfg.Dispatcher
	if dcfg == (DispatcherConfig{}) {
		dcfg = DefaultDispatcherConfig()
	}
	obs := orNop(cfg.Observer)

	return &Engine{
		store:  cfg.Store,
		orders: cfg.Orders,
		clock:  clock,
		logger: logger,
		obs:    obs,
		evaluator: &ProgressEvaluator{
			Orders:       cfg.Orders,
			Logger:       logger,
			QueryTimeout: cfg.QueryTimeout,
			Observer:     obs,
		},
		dispatcher: &Dispatcher{
			Markers:  cfg.Store,
			Sink:     cfg.Sink,
			Config:   dcfg,
			Logger:   logger,
			Observer: obs,
		},
		recorder: &Recorder{
			Goals:    cfg.Store,
			Logger:   logger,
			Observer: obs,
		},
	}
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock() }

// =============================================================================
// GOAL LIFECYCLE
// =============================================================================

// GoalInput is the user-facing goal creation request.
type GoalInput struct {
	Metric MetricKind
	Target decimal.Decimal
	Period PeriodKind
	Level  Level

	// Optional explicit interval; both or neither. Defaults to the
	// current period.
	Start *time.Time
	End   *time.Time

	// Nil means DefaultNotificationPolicy.
	Notifications *NotificationPolicy
}

// SetGoal creates the goal for in.Metric, replacing any existing one.
func (e *Engine) SetGoal(ctx context.Context, in GoalInput) (*GoalDefinition, error) {
	if !in.Period.Valid() {
		return nil, invalid("period", "unknown period kind %q", in.Period)
	}
	now := e.clock()

	interval := PeriodFor(in.Period, now)
	if in.Start != nil || in.End != nil {
		if in.Start == nil || in.End == nil {
			return nil, invalid("interval", "start and end must be given together")
		}
		interval = Interval{Start: StartOfDay(*in.Start), End: EndOfDay(*in.End)}
	}

	policy := DefaultNotificationPolicy()
	if in.Notifications != nil {
		policy = in.Notifications.Normalized()
	}
	level := in.Level
	if level == "" {
		level = LevelCompany
	}

	g := GoalDefinition{
		Metric:        in.Metric,
		Target:        in.Target,
		Period:        in.Period,
		Interval:      interval,
		Level:         level,
		CreatedAt:     now,
		Notifications: policy,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	// A failed replace leaves the previous goal untouched.
	if err := e.store.ReplaceGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("save goal: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"metric":   g.Metric,
		"target":   g.Target.String(),
		"period":   g.Period,
		"interval": g.Interval.String(),
	}).Info("Goal set")
	return &g, nil
}

// ResetGoal moves the goal to the period containing now, keeping its
// target. Milestone markers are cleared so the new period starts fresh.
func (e *Engine) ResetGoal(ctx context.Context, metric MetricKind) (*GoalDefinition, error) {
	g, err := e.store.GetGoal(ctx, metric)
	if err != nil {
		return nil, err
	}
	g.Interval = PeriodFor(g.Period, e.clock())

	if err := e.store.ClearMarkers(ctx, metric); err != nil {
		return nil, fmt.Errorf("clear markers: %w", err)
	}
	if err := e.store.SaveGoal(ctx, *g); err != nil {
		return nil, fmt.Errorf("save goal: %w", err)
	}
	e.logger.WithFields(logrus.Fields{"metric": metric, "interval": g.Interval.String()}).Info("Goal reset")
	return g, nil
}

// GoalEdit lists the fields EditGoal may change. Nil fields are untouched.
type GoalEdit struct {
	Target        *decimal.Decimal
	Level         *Level
	Notifications *NotificationPolicy
}

// EditGoal applies edit in place after validating the result.
func (e *Engine) EditGoal(ctx context.Context, metric MetricKind, edit GoalEdit) (*GoalDefinition, error) {
	g, err := e.store.GetGoal(ctx, metric)
	if err != nil {
		return nil, err
	}
	if edit.Target != nil {
		g.Target = *edit.Target
	}
	if edit.Level != nil {
		g.Level = *edit.Level
	}
	if edit.Notifications != nil {
		g.Notifications = edit.Notifications.Normalized()
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.SaveGoal(ctx, *g); err != nil {
		return nil, fmt.Errorf("save goal: %w", err)
	}
	return g, nil
}

// ClearGoal deletes the goal with its history and markers.
func (e *Engine) ClearGoal(ctx context.Context, metric MetricKind) error {
	if _, err := e.store.GetGoal(ctx, metric); err != nil {
		return err
	}
	if err := e.store.DeleteGoal(ctx, metric); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if err := e.store.ClearMarkers(ctx, metric); err != nil {
		return fmt.Errorf("clear markers: %w", err)
	}
	e.logger.WithField("metric", metric).Info("Goal cleared")
	return nil
}

func (e *Engine) GetGoal(ctx context.Context, metric MetricKind) (*GoalDefinition, error) {
	return e.store.GetGoal(ctx, metric)
}

func (e *Engine) ListGoals(ctx context.Context) ([]GoalDefinition, error) {
	return e.store.ListGoals(ctx)
}

// =============================================================================
// EVALUATION
// =============================================================================

// GoalStatus is the evaluation of one goal.
type GoalStatus struct {
	Goal             GoalDefinition `json:"goal"`
	Progress         Progress       `json:"progress"`
	Forecast         ForecastResult `json:"forecast"`
	Notifications    []Notification `json:"notifications,omitempty"`
	SnapshotRecorded bool           `json:"snapshotRecorded"`
}

// CycleResult is the outcome of one evaluation cycle.
type CycleResult struct {
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
	Skipped     bool            `json:"skipped"`
	Statuses    []GoalStatus    `json:"statuses"`
	Score       int             `json:"score"`
	Leaderboard []rewards.Entry `json:"leaderboard"`
}

// Status evaluates progress and forecast for one goal without side effects.
func (e *Engine) Status(ctx context.Context, metric MetricKind) (*GoalStatus, error) {
	g, err := e.store.GetGoal(ctx, metric)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	p := e.evaluator.Evaluate(ctx, *g)
	return &GoalStatus{
		Goal:     *g,
		Progress: p,
		Forecast: Forecast(g.Interval, p.Percentage, now),
	}, nil
}

// RunCycle evaluates every goal once. See the file header for the steps.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.obs.CycleSkipped()
		e.logger.Debug("Evaluation cycle skipped, previous cycle still running")
		return &CycleResult{StartedAt: e.clock(), Skipped: true}, ErrCycleInProgress
	}
	defer e.running.Store(false)

	now := e.clock()
	started := time.Now()

	goals, err := e.store.ListGoals(ctx)
	if err != nil {
		e.obs.StoreError("list_goals")
		return nil, fmt.Errorf("list goals: %w", err)
	}

	result := &CycleResult{StartedAt: now}
	states := make([]rewards.State, 0, len(goals))

	for i := range goals {
		status := e.evaluate(ctx, &goals[i], now)
		result.Statuses = append(result.Statuses, status)
		states = append(states, rewards.State{
			ID:       string(status.Goal.Metric),
			Name:     fmt.Sprintf("%s (%s)", status.Goal.Metric, status.Goal.Level),
			Progress: status.Progress.Percentage,
		})
	}

	result.Score = rewards.Score(states)
	result.Leaderboard = rewards.Leaderboard(states)
	result.FinishedAt = e.clock()

	e.obs.CycleCompleted(time.Since(started), len(goals))

	e.mu.Lock()
	e.last = result
	e.mu.Unlock()

	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, g *GoalDefinition, now time.Time) GoalStatus {
	p := e.evaluator.Evaluate(ctx, *g)
	f := Forecast(g.Interval, p.Percentage, now)
	status := GoalStatus{Progress: p, Forecast: f}

	if !p.Unavailable {
		status.Notifications = e.dispatcher.Dispatch(ctx, *g, p, f, now)
		status.SnapshotRecorded = e.recorder.Record(ctx, g, p, now)
	}
	status.Goal = *g

	e.logger.WithFields(logrus.Fields{
		"metric":        g.Metric,
		"progress":      p.Percentage,
		"projected":     f.Percentage,
		"onTrack":       f.OnTrack,
		"notifications": len(status.Notifications),
	}).Debug("Goal evaluated")
	return status
}

// LastCycle returns the most recent completed cycle, or nil.
func (e *Engine) LastCycle() *CycleResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

// Suggest proposes a target for metric and period. The baseline is the
// current calendar month to date against the whole previous month.
func (e *Engine) Suggest(ctx context.Context, metric MetricKind, period PeriodKind) (*Suggestion, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	now := e.clock()
	current := PeriodFor(PeriodMonthly, now)
	previous := PreviousPeriod(PeriodMonthly, now)

	curOrders, err := e.orders.QueryOrders(ctx, current.Start, current.End)
	if err != nil {
		return nil, fmt.Errorf("query current period: %w", err)
	}
	prevOrders, err := e.orders.QueryOrders(ctx, previous.Start, previous.End)
	if err != nil {
		return nil, fmt.Errorf("query previous period: %w", err)
	}

	s := BuildSuggestion(metric, period, MetricValue(metric, curOrders), MetricValue(metric, prevOrders))
	return &s, nil
}
