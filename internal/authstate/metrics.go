// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package authstate

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	checkOK        = "ok"
	checkFailed    = "failed"
	checkSkipped   = "skipped"
	checkDiscarded = "discarded"
)

// TransitionsTotal counts committed transitions.
// Use RegisterMetrics to register this with a Prometheus registry.
var TransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_auth_transitions_total",
		Help: "Total number of auth state transitions by source phase, target phase and event",
	},
	[]string{"from", "to", "event"},
)

// ChecksTotal counts auth checks by result: ok, failed, skipped (a check
// was already in flight) or discarded (superseded by a later transition).
var ChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_auth_checks_total",
		Help: "Total number of auth checks by result",
	},
	[]string{"result"},
)

// DroppedEventsTotal counts events not delivered to a full subscriber.
var DroppedEventsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "portal_auth_dropped_events_total",
		Help: "Total number of auth events dropped because a subscriber was full",
	},
)

// Authenticated is 1 while a machine is in the authenticated phase.
var Authenticated = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "portal_auth_authenticated",
		Help: "Whether the client currently holds an authenticated session",
	},
)

// RegisterMetrics registers auth state metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(TransitionsTotal)
	reg.MustRegister(ChecksTotal)
	reg.MustRegister(DroppedEventsTotal)
	reg.MustRegister(Authenticated)
}

// RecordTransition records a committed transition.
func RecordTransition(from, to Phase, event EventType) {
	TransitionsTotal.WithLabelValues(string(from), string(to), string(event)).Inc()
}

// RecordCheck records the result of one auth check.
func RecordCheck(result string) {
	ChecksTotal.WithLabelValues(result).Inc()
}

// RecordDroppedEvent records an event dropped for a full subscriber.
func RecordDroppedEvent() {
	DroppedEventsTotal.Inc()
}

// SetAuthenticated updates the authenticated gauge.
func SetAuthenticated(authenticated bool) {
	if authenticated {
		Authenticated.Set(1)
		return
	}
	Authenticated.Set(0)
}
