// Package metrics exposes Prometheus counters for throttle decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestsTotal counts throttle decisions, partitioned by throttle name and
// outcome ("allowed" or "denied"). Registered once on the default registry
// so every ThrottleMetrics instance shares the same collector.
var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "throttle_requests_total",
		Help: "Total number of throttle decisions, by throttle and outcome.",
	},
	[]string{"throttle", "outcome"},
)

// ThrottleMetrics records decisions for one named throttle.
type ThrottleMetrics struct {
	allowed prometheus.Counter
	denied  prometheus.Counter
}

// NewThrottleMetrics returns the metrics handle for the named throttle.
func NewThrottleMetrics(name string) *ThrottleMetrics {
	return &ThrottleMetrics{
		allowed: requestsTotal.WithLabelValues(name, "allowed"),
		denied:  requestsTotal.WithLabelValues(name, "denied"),
	}
}

// RecordRequest records the outcome of a single throttle decision.
func (m *ThrottleMetrics) RecordRequest(allowed bool) {
	if allowed {
		m.allowed.Inc()
	} else {
		m.denied.Inc()
	}
}
