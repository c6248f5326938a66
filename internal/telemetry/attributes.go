// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	PlaylistOriginKey   = "playlist.origin"
	PlaylistChannelsKey = "playlist.channels"

	ChannelIndexKey = "channel.index"
	ChannelNameKey  = "channel.name"

	EngineKey  = "playback.engine"
	AttemptKey = "playback.attempt"

	ErrorKindKey = "error.kind"
)

// PlaylistAttributes describes a playlist load. channels is omitted while
// unknown (negative).
func PlaylistAttributes(origin string, channels int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(PlaylistOriginKey, origin)}
	if channels >= 0 {
		attrs = append(attrs, attribute.Int(PlaylistChannelsKey, channels))
	}
	return attrs
}

// ChannelAttributes describes the channel a span acts on.
func ChannelAttributes(index int, name string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(ChannelIndexKey, index)}
	if name != "" {
		attrs = append(attrs, attribute.String(ChannelNameKey, name))
	}
	return attrs
}

// EngineAttributes describes one playback attempt.
func EngineAttributes(engine string, attempt uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EngineKey, engine),
		attribute.Int64(AttemptKey, int64(attempt)),
	}
}

// ErrorAttributes tags a span with a coarse error classification.
func ErrorAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorKindKey, kind)}
}
