package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	timerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "timer",
		Name:      "transitions_total",
		Help:      "Timer operations by name and outcome.",
	}, []string{"operation", "outcome"})

	sessionRollovers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "timer",
		Name:      "rollovers_total",
		Help:      "Sessions auto-closed at the end of the local day they started on.",
	}, []string{"kind"})

	overtimeDays = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "overtime",
		Name:      "synced_days_total",
		Help:      "Employee-days recomputed by overtime sync, by result.",
	}, []string{"result"})

	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Domain events that could not be published.",
	})
)

func init() {
	prometheus.MustRegister(timerTransitions, sessionRollovers, overtimeDays, eventsDropped)
}

// RecordTransition counts a timer operation. A nil err is counted as "ok".
func RecordTransition(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	timerTransitions.WithLabelValues(operation, outcome).Inc()
}

// RecordRollover counts a session closed by the day rollover.
func RecordRollover(kind string) {
	sessionRollovers.WithLabelValues(kind).Inc()
}

// RecordOvertimeSync counts one recomputed day. result is "upserted", "removed" or "unchanged".
func RecordOvertimeSync(result string) {
	overtimeDays.WithLabelValues(result).Inc()
}

func RecordPublishFailure() {
	eventsDropped.Inc()
}
