// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"errors"
	"fmt"

	"github.com/ManuGH/tvplay/internal/playlist"
)

// Status is the state of the current playback attempt.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusPlaying  Status = "playing"
	StatusRetrying Status = "retrying"
	StatusFailed   Status = "failed"
)

// ErrorKind classifies engine-reported failures.
type ErrorKind string

const (
	ErrorNetwork     ErrorKind = "network"
	ErrorMedia       ErrorKind = "media"
	ErrorUnknown     ErrorKind = "unknown"
	ErrorUnsupported ErrorKind = "unsupported"
)

var (
	// ErrUnsupportedPlayback means neither the primary nor the fallback engine
	// can play on this host. It is terminal and never retried.
	ErrUnsupportedPlayback = errors.New("no supported stream engine")
	// ErrRetriesExhausted wraps the last fatal error once the retry budget is spent.
	ErrRetriesExhausted = errors.New("failed to load stream after multiple attempts")
)

// EngineError is a failure reported by a stream engine.
type EngineError struct {
	Kind    ErrorKind
	Fatal   bool
	Details string
}

func (e *EngineError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Details)
}

// Session is a snapshot of the controller's playback state.
type Session struct {
	Channel     *playlist.Channel `json:"channel,omitempty"`
	Status      Status            `json:"status"`
	RetryCount  int               `json:"retryCount"`
	SwitchCount int               `json:"switchCount"`
	ErrorCount  int               `json:"errorCount"`
	Attempt     uint64            `json:"attempt"`
	Engine      string            `json:"engine,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
}

func (s Session) clone() Session {
	if s.Channel != nil {
		ch := *s.Channel
		s.Channel = &ch
	}
	return s
}
