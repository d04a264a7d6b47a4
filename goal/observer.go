package goal

import "time"

// Observer receives engine events for instrumentation. The metrics package
// provides a Prometheus implementation.
type Observer interface {
	CycleCompleted(duration time.Duration, goals int)
	CycleSkipped()
	NotificationEmitted(kind NotificationKind)
	SnapshotRecorded(metric MetricKind)
	RepositoryError(metric MetricKind)
	StoreError(op string)
}

type nopObserver struct{}

func (nopObserver) CycleCompleted(time.Duration, int)    {}
func (nopObserver) CycleSkipped()                        {}
func (nopObserver) NotificationEmitted(NotificationKind) {}
func (nopObserver) SnapshotRecorded(MetricKind)          {}
func (nopObserver) RepositoryError(MetricKind)           {}
func (nopObserver) StoreError(string)                    {}

func orNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
