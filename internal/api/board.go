// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/catalog"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/rs/zerolog"
)

// DefaultToastHistory bounds the notifications kept by a Board.
const DefaultToastHistory = 20

// Notice is a status line or notification as shown to the user.
type Notice struct {
	Message string       `json:"message"`
	Level   player.Level `json:"level"`
	At      time.Time    `json:"at"`
}

// BoardState is what a client renders: status bar, notifications, the
// loading and error overlays, the now-playing label and the channel list.
type BoardState struct {
	Status      Notice                 `json:"status"`
	Toasts      []Notice               `json:"toasts"`
	Loading     bool                   `json:"loading"`
	Error       string                 `json:"error,omitempty"`
	NowPlaying  string                 `json:"nowPlaying,omitempty"`
	Channels    []catalog.VisibleEntry `json:"channels"`
	ActiveIndex int                    `json:"activeIndex"`
}

// Board is the player.Shell served over HTTP. The player writes to it from
// its loop; handlers read copies.
type Board struct {
	mu        sync.RWMutex
	state     BoardState
	maxToasts int
	now       func() time.Time
	logger    zerolog.Logger
}

var _ player.Shell = (*Board)(nil)

// NewBoard creates a board keeping at most maxToasts notifications.
func NewBoard(maxToasts int) *Board {
	if maxToasts <= 0 {
		maxToasts = DefaultToastHistory
	}
	return &Board{
		state:     BoardState{ActiveIndex: -1},
		maxToasts: maxToasts,
		now:       time.Now,
		logger:    log.WithComponent("shell"),
	}
}

func (b *Board) Status(msg string, level player.Level) {
	b.mu.Lock()
	b.state.Status = Notice{Message: msg, Level: level, At: b.now()}
	b.mu.Unlock()
}

func (b *Board) Toast(msg string, level player.Level) {
	b.mu.Lock()
	b.state.Toasts = append(b.state.Toasts, Notice{Message: msg, Level: level, At: b.now()})
	if over := len(b.state.Toasts) - b.maxToasts; over > 0 {
		b.state.Toasts = append([]Notice(nil), b.state.Toasts[over:]...)
	}
	b.mu.Unlock()
	b.logger.Debug().Str("level", string(level)).Str(log.FieldEvent, "shell.toast").Msg(msg)
}

func (b *Board) Channels(visible []catalog.VisibleEntry, activeIndex int) {
	b.mu.Lock()
	b.state.Channels = visible
	b.state.ActiveIndex = activeIndex
	b.mu.Unlock()
}

// Loading toggles the loading overlay. Starting a load dismisses a stale error.
func (b *Board) Loading(on bool) {
	b.mu.Lock()
	b.state.Loading = on
	if on {
		b.state.Error = ""
	}
	b.mu.Unlock()
}

func (b *Board) Error(msg string) {
	b.mu.Lock()
	b.state.Error = msg
	b.state.Loading = false
	b.mu.Unlock()
}

// NowPlaying updates the label. A new channel dismisses the error overlay.
func (b *Board) NowPlaying(name string) {
	b.mu.Lock()
	b.state.NowPlaying = name
	if name != "" {
		b.state.Error = ""
	}
	b.mu.Unlock()
}

// State returns a copy of the board.
func (b *Board) State() BoardState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.state
	s.Toasts = append([]Notice(nil), b.state.Toasts...)
	s.Channels = append([]catalog.VisibleEntry(nil), b.state.Channels...)
	return s
}
