package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PlatformMetrics groups the counters emitted by the moderation and
// ledger services.
type PlatformMetrics struct {
	activitiesSubmitted prometheus.Counter
	awardsApplied       *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	notifierFailures    prometheus.Counter
}

var (
	platformOnce     sync.Once
	platformRegistry *PlatformMetrics
)

// Platform returns the process-wide metrics registry, registering the
// collectors on first use.
func Platform() *PlatformMetrics {
	platformOnce.Do(func() {
		platformRegistry = &PlatformMetrics{
			activitiesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ecoledger_activities_submitted_total",
				Help: "Count of member activity submissions accepted for review.",
			}),
			awardsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ecoledger_awards_applied_total",
				Help: "Count of admin point awards by activity type.",
			}, []string{"type"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ecoledger_moderation_transitions_total",
				Help: "Count of promotion moderation transitions by target status.",
			}, []string{"status"}),
			notifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ecoledger_notifier_failures_total",
				Help: "Number of failed notification delivery attempts.",
			}),
		}
		prometheus.MustRegister(
			platformRegistry.activitiesSubmitted,
			platformRegistry.awardsApplied,
			platformRegistry.transitions,
			platformRegistry.notifierFailures,
		)
	})
	return platformRegistry
}

// RecordSubmission increments the activity submission counter.
func (m *PlatformMetrics) RecordSubmission() {
	if m == nil {
		return
	}
	m.activitiesSubmitted.Inc()
}

// RecordAward increments the award counter for the activity type.
func (m *PlatformMetrics) RecordAward(activityType string) {
	if m == nil {
		return
	}
	m.awardsApplied.WithLabelValues(activityType).Inc()
}

// RecordTransition increments the moderation transition counter.
func (m *PlatformMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordNotifierFailure increments the failed delivery counter.
func (m *PlatformMetrics) RecordNotifierFailure() {
	if m == nil {
		return
	}
	m.notifierFailures.Inc()
}
