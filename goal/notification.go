/*
notification.go - Milestone, deadline and off-track notifications

PURPOSE:
  Detects notification conditions for a goal once per evaluation cycle
  and pushes them to the Notifier, deduplicating through MarkerStore.

CONDITIONS:
  milestone: progress >= milestone, and no marker or marker older than Window
  deadline:  DeadlineWarning, 0 < daysRemaining <= DeadlineDays, progress < 100
  offtrack:  progress < OffTrackBelow, !onTrack, 0 < daysRemaining <= OffTrackDays
  daily:     DailyUpdate, at most once per calendar day

DEDUP POLICY (DispatcherConfig):
  MilestoneOnce=false     a milestone still reached re-fires every Window
  MilestoneOnce=true      a milestone fires once until markers are cleared
  ThrottleWarnings=true   deadline/offtrack use the same Window markers
  ThrottleWarnings=false  deadline/offtrack fire on every cycle

FAILURE MODE:
  Marker read/write errors are logged and the notification is still
  emitted; dedup becomes best-effort for that cycle.
*/
package goal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type NotificationKind string

const (
	KindMilestone NotificationKind = "milestone"
	KindDeadline  NotificationKind = "deadline"
	KindOffTrack  NotificationKind = "offtrack"
	KindDaily     NotificationKind = "daily"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one emitted alert.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Metric    MetricKind       `json:"metric"`
	Message   string           `json:"message"`
	Severity  Severity         `json:"severity"`
	Milestone int              `json:"milestone,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DispatcherConfig holds thresholds and dedup policy.
type DispatcherConfig struct {
	Window           time.Duration
	DeadlineDays     int
	OffTrackDays     int
	OffTrackBelow    float64
	MilestoneOnce    bool
	ThrottleWarnings bool
}

// DefaultDispatcherConfig returns the standard thresholds.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Window:           24 * time.Hour,
		DeadlineDays:     3,
		OffTrackDays:     7,
		OffTrackBelow:    50,
		MilestoneOnce:    false,
		ThrottleWarnings: true,
	}
}

// Dispatcher evaluates notification conditions.
type Dispatcher struct {
	Markers  MarkerStore
	Sink     Notifier
	Config   DispatcherConfig
	Logger   logrus.FieldLogger
	Observer Observer
}

// Dispatch emits every notification whose condition holds and returns them.
func (d *Dispatcher) Dispatch(ctx context.Context, g GoalDefinition, p Progress, f ForecastResult, now time.Time) []Notification {
	policy := g.Notifications.Normalized()
	if !policy.Enabled {
		return nil
	}

	var out []Notification

	for _, m := range policy.Milestones {
		if p.Percentage < float64(m) {
			continue
		}
		key := MilestoneKey(g.Metric, m)
		if !d.due(ctx, key, now, d.Config.MilestoneOnce) {
			continue
		}
		severity := SeverityInfo
		if m >= 100 {
			severity = SeveritySuccess
		}
		n := d.newNotification(KindMilestone, g.Metric, severity, now,
			fmt.Sprintf("%s goal reached %d%% (%s of %s)", title(g.Metric), m, p.Value.StringFixed(2), g.Target.String()))
		n.Milestone = m
		out = append(out, d.fire(ctx, key, n))
	}

	if policy.DeadlineWarning && f.DaysRemaining > 0 && f.DaysRemaining <= d.Config.DeadlineDays && p.Percentage < 100 {
		key := MarkerKey{Metric: g.Metric, Kind: KindDeadline}
		if !d.Config.ThrottleWarnings || d.due(ctx, key, now, false) {
			n := d.newNotification(KindDeadline, g.Metric, SeverityWarning, now,
				fmt.Sprintf("%s goal ends in %d day(s) at %.0f%% complete", title(g.Metric), f.DaysRemaining, p.Percentage))
			out = append(out, d.fire(ctx, key, n))
		}
	}

	if p.Percentage < d.Config.OffTrackBelow && !f.OnTrack && f.DaysRemaining > 0 && f.DaysRemaining <= d.Config.OffTrackDays {
		key := MarkerKey{Metric: g.Metric, Kind: KindOffTrack}
		if !d.Config.ThrottleWarnings || d.due(ctx, key, now, false) {
			n := d.newNotification(KindOffTrack, g.Metric, SeverityError, now,
				fmt.Sprintf("%s goal is off track: %.0f%% done, projected %.0f%%", title(g.Metric), p.Percentage, f.Percentage))
			out = append(out, d.fire(ctx, key, n))
		}
	}

	if policy.DailyUpdate {
		key := MarkerKey{Metric: g.Metric, Kind: KindDaily}
		if d.notFiredToday(ctx, key, now) {
			n := d.newNotification(KindDaily, g.Metric, SeverityInfo, now,
				fmt.Sprintf("%s goal: %.0f%% complete, %d day(s) left", title(g.Metric), p.Percentage, f.DaysRemaining))
			out = append(out, d.fire(ctx, key, n))
		}
	}

	return out
}

// due reports whether the condition behind key may fire at now.
func (d *Dispatcher) due(ctx context.Context, key MarkerKey, now time.Time, once bool) bool {
	last, ok, err := d.Markers.LastFired(ctx, key)
	if err != nil {
		d.logger().WithError(err).WithField("marker", key.String()).Warn("Marker lookup failed, firing without dedup")
		orNop(d.Observer).StoreError("marker_read")
		return true
	}
	if !ok {
		return true
	}
	if once {
		return false
	}
	return now.Sub(last) > d.window()
}

func (d *Dispatcher) notFiredToday(ctx context.Context, key MarkerKey, now time.Time) bool {
	last, ok, err := d.Markers.LastFired(ctx, key)
	if err != nil {
		d.logger().WithError(err).WithField("marker", key.String()).Warn("Marker lookup failed, firing without dedup")
		orNop(d.Observer).StoreError("marker_read")
		return true
	}
	return !ok || DateKey(last.In(now.Location())) != DateKey(now)
}

// fire emits n and then records the marker.
func (d *Dispatcher) fire(ctx context.Context, key MarkerKey, n Notification) Notification {
	if d.Sink != nil {
		d.Sink.Emit(ctx, n)
	}
	orNop(d.Observer).NotificationEmitted(n.Kind)

	if err := d.Markers.RecordFired(ctx, key, n.CreatedAt); err != nil {
		d.logger().WithError(err).WithField("marker", key.String()).Error("Failed to record notification marker")
		orNop(d.Observer).StoreError("marker_write")
	}
	return n
}

func (d *Dispatcher) newNotification(kind NotificationKind, metric MetricKind, severity Severity, now time.Time, msg string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Metric:    metric,
		Message:   msg,
		Severity:  severity,
		CreatedAt: now,
	}
}

func (d *Dispatcher) window() time.Duration {
	if d.Config.Window <= 0 {
		return 24 * time.Hour
	}
	return d.Config.Window
}

func (d *Dispatcher) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

func title(m MetricKind) string {
	switch m {
	case MetricOrders:
		return "Orders"
	case MetricSales:
		return "Sales"
	}
	return string(m)
}
