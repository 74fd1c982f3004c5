// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package guard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DecisionsTotal counts middleware decisions by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_guard_decisions_total",
		Help: "Total number of route guard decisions by outcome",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers guard metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DecisionsTotal)
}

// RecordDecision records one guard decision.
func RecordDecision(outcome Outcome) {
	DecisionsTotal.WithLabelValues(string(outcome)).Inc()
}
