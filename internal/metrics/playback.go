// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playbackStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tvplay_playback_status",
		Help: "Current playback status (active status=1; others 0)",
	}, []string{"status"})

	channelSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_channel_switches_total",
		Help: "Total number of channel switches",
	})

	engineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_engine_errors_total",
		Help: "Stream engine errors by kind and severity",
	}, []string{"kind", "fatal"})

	retriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_playback_retries_total",
		Help: "Total number of backoff retries scheduled",
	})

	playbackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_failures_total",
		Help: "Terminal playback failures by error kind",
	}, []string{"kind"})
)

var playbackStates = []string{"idle", "loading", "playing", "retrying", "failed"}

// SetPlaybackStatus marks status as the active playback status.
func SetPlaybackStatus(status string) {
	for _, s := range playbackStates {
		value := 0.0
		if s == status {
			value = 1.0
		}
		playbackStatus.WithLabelValues(s).Set(value)
	}
}

// RecordChannelSwitch counts a channel switch.
func RecordChannelSwitch() {
	channelSwitches.Inc()
}

// RecordEngineError counts an engine error.
func RecordEngineError(kind string, fatal bool) {
	engineErrors.WithLabelValues(kind, strconv.FormatBool(fatal)).Inc()
}

// RecordRetryScheduled counts a scheduled backoff retry.
func RecordRetryScheduled() {
	retriesScheduled.Inc()
}

// RecordPlaybackFailure counts a terminal playback failure.
func RecordPlaybackFailure(kind string) {
	playbackFailures.WithLabelValues(kind).Inc()
}
