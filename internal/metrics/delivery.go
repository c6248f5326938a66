// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamStartupLatency tracks the time from LoadSource to the first ready signal.
	StreamStartupLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvplay_stream_startup_latency_seconds",
		Help:    "Time from load to first media per engine",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
	}, []string{"engine"})

	streamBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_stream_bytes_total",
		Help: "Media bytes delivered per engine",
	}, []string{"engine"})
)

// ObserveStreamStartup records the startup latency of an engine.
func ObserveStreamStartup(engine string, d time.Duration) {
	StreamStartupLatency.WithLabelValues(engine).Observe(d.Seconds())
}

// AddStreamBytes counts delivered media bytes.
func AddStreamBytes(engine string, n int64) {
	if n > 0 {
		streamBytes.WithLabelValues(engine).Add(float64(n))
	}
}
