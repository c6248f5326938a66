// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldAttempt   = "attempt"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldChannel    = "channel"
	FieldChannelURL = "channel_url"
	FieldIndex      = "index"
	FieldRetryCount = "retry_count"
	FieldErrorKind  = "error_kind"
	FieldEngine     = "engine"
	FieldDelay      = "delay"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Playlist fields
	FieldSource   = "source"
	FieldChannels = "channels"
	FieldBackend  = "backend"
)
