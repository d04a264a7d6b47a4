/*
scheduler.go - Periodic evaluation scheduler

PURPOSE:
  Runs goal.Engine.RunCycle on a fixed interval so progress, forecasts,
  notifications and daily snapshots stay current without a client calling
  POST /api/cycle.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs one cycle immediately on start
  - A cycle still running when the ticker fires is skipped by the engine
    (ErrCycleInProgress) and logged at debug level
  - Every cycle gets its own timeout derived from the interval

CONFIGURATION:
  - Interval: How often to evaluate (default: 30s, [scheduler] interval)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewEvaluationScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunCycle endpoint (manual evaluation)
  - goal/engine.go: RunCycle
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/goal-engine/goal"
)

// EvaluationScheduler runs evaluation cycles in the background.
type EvaluationScheduler struct {
	Engine   *goal.Engine
	Interval time.Duration
	Enabled  bool
	Logger   logrus.FieldLogger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewEvaluationScheduler creates a new scheduler.
func NewEvaluationScheduler(engine *goal.Engine, logger logrus.FieldLogger) *EvaluationScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EvaluationScheduler{
		Engine:   engine,
		Interval: 30 * time.Second,
		Enabled:  true,
		Logger:   logger,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *EvaluationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.WithField("interval", s.Interval).Info("[Scheduler] Started")
}

// Stop stops the scheduler and waits for an in-flight cycle to finish.
func (s *EvaluationScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	// RunNow takes mu, so wait outside it.
	s.wg.Wait()
	s.Logger.Info("[Scheduler] Stopped")
}

func (s *EvaluationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-stop:
			return
		}
	}
}

func (s *EvaluationScheduler) tick(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.Interval)
	defer cancel()
	_, _ = s.RunNow(ctx)
}

// RunNow triggers an immediate cycle (for testing/admin).
func (s *EvaluationScheduler) RunNow(ctx context.Context) (*goal.CycleResult, error) {
	res, err := s.Engine.RunCycle(ctx)
	switch {
	case errors.Is(err, goal.ErrCycleInProgress):
		s.Logger.Debug("[Scheduler] Previous cycle still running, skipped")
		return res, err
	case err != nil:
		s.Logger.WithError(err).Error("[Scheduler] Cycle failed")
		return res, err
	}

	s.mu.Lock()
	s.lastRun = res.FinishedAt
	s.mu.Unlock()

	notified := 0
	for _, st := range res.Statuses {
		notified += len(st.Notifications)
	}
	s.Logger.WithFields(logrus.Fields{
		"goals":         len(res.Statuses),
		"notifications": notified,
		"score":         res.Score,
		"duration":      res.FinishedAt.Sub(res.StartedAt),
	}).Debug("[Scheduler] Cycle completed")
	return res, nil
}

// NextRunTime returns when the next scheduled cycle will occur.
func (s *EvaluationScheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return s.Engine.Now()
	}
	return s.lastRun.Add(s.Interval)
}
