// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "github.com/ManuGH/tvplay/internal/catalog"

// Level is the severity of a status line or notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Shell is the user-facing surface the player reports to. Methods are called
// from the player loop and must not block.
type Shell interface {
	Status(msg string, level Level)
	Toast(msg string, level Level)
	// Channels publishes the visible channel list and the full-catalog
	// index of the active channel, -1 for none.
	Channels(visible []catalog.VisibleEntry, activeIndex int)
	Loading(on bool)
	Error(msg string)
	NowPlaying(name string)
}

// NopShell discards everything.
type NopShell struct{}

func (NopShell) Status(string, Level)                 {}
func (NopShell) Toast(string, Level)                  {}
func (NopShell) Channels([]catalog.VisibleEntry, int) {}
func (NopShell) Loading(bool)                         {}
func (NopShell) Error(string)                         {}
func (NopShell) NowPlaying(string)                    {}
