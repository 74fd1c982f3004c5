// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package request

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestsTotal counts completed Do calls by endpoint and outcome, where
// outcome is "ok", a Kind, or "cancelled".
// Use RegisterMetrics to register this with a Prometheus registry.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_requests_total",
		Help: "Total number of identity service requests by endpoint and outcome",
	},
	[]string{"endpoint", "outcome"},
)

// RetriesTotal counts retry attempts by endpoint.
var RetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_request_retries_total",
		Help: "Total number of identity service request retries by endpoint",
	},
	[]string{"endpoint"},
)

// RequestDuration observes the wall time of Do calls, retries included.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "portal_request_duration_seconds",
		Help:    "Identity service request duration in seconds, including retries",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// RegisterMetrics registers request metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(RequestsTotal)
	reg.MustRegister(RetriesTotal)
	reg.MustRegister(RequestDuration)
}

// RecordRequest records a completed request.
func RecordRequest(endpoint, outcome string, duration time.Duration) {
	RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func RecordRetry(endpoint string) {
	RetriesTotal.WithLabelValues(endpoint).Inc()
}
