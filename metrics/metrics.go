// Package metrics exports evaluation-cycle telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp/goal-engine/goal"
)

// PrometheusObserver implements goal.Observer.
type PrometheusObserver struct {
	cycleDuration prometheus.Histogram
	cyclesSkipped prometheus.Counter
	goalsTracked  prometheus.Gauge
	notifications *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	repoErrors    *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
}

var _ goal.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the goal engine metrics on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "goal_engine"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of evaluation cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Evaluation cycles skipped because one was already running.",
		}),
		goalsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goals_tracked",
			Help:      "Goals evaluated by the last cycle.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications emitted, by kind.",
		}, []string{"kind"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_recorded_total",
			Help:      "Daily progress snapshots persisted, by metric.",
		}, []string{"metric"}),
		repoErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_query_errors_total",
			Help:      "Order repository failures, by metric.",
		}, []string{"metric"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Persistence failures during evaluation, by operation.",
		}, []string{"operation"}),
	}

	var err error
	o.cycleDuration = register(reg, o.cycleDuration, &err)
	o.cyclesSkipped = register(reg, o.cyclesSkipped, &err)
	o.goalsTracked = register(reg, o.goalsTracked, &err)
	o.notifications = register(reg, o.notifications, &err)
	o.snapshots = register(reg, o.snapshots, &err)
	o.repoErrors = register(reg, o.repoErrors, &err)
	o.storeErrors = register(reg, o.storeErrors, &err)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg. An already registered collector is reused so
// several engines in one process share their series. The first failure is
// kept in errp.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, errp *error) T {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		*errp = fmt.Errorf("register goal metric: %w", err)
	}
	return c
}

func (o *PrometheusObserver) CycleCompleted(d time.Duration, goals int) {
	o.cycleDuration.Observe(d.Seconds())
	o.goalsTracked.Set(float64(goals))
}

func (o *PrometheusObserver) CycleSkipped() { o.cyclesSkipped.Inc() }

func (o *PrometheusObserver) NotificationEmitted(kind goal.NotificationKind) {
	o.notifications.WithLabelValues(string(kind)).Inc()
}

func (o *PrometheusObserver) SnapshotRecorded(metric goal.MetricKind) {
	o.snapshots.WithLabelValues(string(metric)).Inc()
}

func (o *PrometheusObserver) RepositoryError(metric goal.MetricKind) {
	o.repoErrors.WithLabelValues(string(metric)).Inc()
}

func (o *PrometheusObserver) StoreError(op string) {
	o.storeErrors.WithLabelValues(op).Inc()
}
