// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package notify

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NoticesTotal counts delivered notices by level.
// Use RegisterMetrics to register this with a Prometheus registry.
var NoticesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_notices_total",
		Help: "Total number of user notices by level",
	},
	[]string{"level"},
)

// RegisterMetrics registers notice metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(NoticesTotal)
}

// RecordNotice records one delivered notice.
func RecordNotice(level Level) {
	NoticesTotal.WithLabelValues(string(level)).Inc()
}
