// Package metrics provides Prometheus metrics for the onboarding service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutcomesTotal counts onboarding operations by their outcome.
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "onboarding",
			Name:      "outcomes_total",
			Help:      "Total number of onboarding operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ProviderCallDuration measures calls to the remote account provider.
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "onboarding",
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of remote provider calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"call", "result"},
	)

	// SinkRegistrationsTotal counts account pool registrations.
	SinkRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "onboarding",
			Name:      "pool_registrations_total",
			Help:      "Total number of account pool registrations",
		},
		[]string{"result"},
	)
)

// RecordOutcome records the outcome of Start, Resume or Cancel.
func RecordOutcome(operation, outcome string) {
	OutcomesTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveProviderCall records one provider call.
func ObserveProviderCall(call, result string, d time.Duration) {
	ProviderCallDuration.WithLabelValues(call, result).Observe(d.Seconds())
}

// RecordRegistration records whether the pool accepted a new account.
func RecordRegistration(added bool) {
	result := "added"
	if !added {
		result = "duplicate"
	}
	SinkRegistrationsTotal.WithLabelValues(result).Inc()
}
