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
	playlistLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playlist_loads_total",
		Help: "Playlist load attempts by origin and outcome",
	}, []string{"origin", "outcome"}) // origin=url|file, outcome=success|empty|fetch_error|read_error

	channelsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvplay_channels_loaded",
		Help: "Number of channels in the current catalog",
	})

	playlistFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tvplay_playlist_fetch_duration_seconds",
		Help:    "Playlist fetch duration by outcome",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"outcome"})
)

// RecordPlaylistLoad counts a playlist load attempt.
func RecordPlaylistLoad(origin, outcome string) {
	playlistLoads.WithLabelValues(origin, outcome).Inc()
}

// SetChannelsLoaded records the catalog size.
func SetChannelsLoaded(n int) {
	channelsLoaded.Set(float64(n))
}

// ObservePlaylistFetch records how long a playlist fetch took.
func ObservePlaylistFetch(outcome string, d time.Duration) {
	playlistFetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
