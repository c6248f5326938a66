// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistenceOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_persistence_ops_total",
		Help: "Session persistence operations by op and outcome",
	}, []string{"op", "outcome"}) // op=save|restore|recent, outcome=success|failure
)

// RecordPersistence counts a persistence operation.
func RecordPersistence(op, outcome string) {
	persistenceOps.WithLabelValues(op, outcome).Inc()
}
