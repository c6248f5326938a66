// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Pinger is satisfied by kv.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports whether the preference store backend answers.
// An unreachable store only degrades the daemon: preferences are best effort.
type StoreChecker struct {
	name  string
	store Pinger
}

func NewStoreChecker(name string, store Pinger) *StoreChecker {
	return &StoreChecker{name: name, store: store}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	if err := c.store.Ping(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "store unreachable", Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "store reachable"}
}

// Liveness is satisfied by player.Loop.
type Liveness interface {
	Healthy(maxLag time.Duration) bool
}

// LoopChecker fails when the event loop stopped or has not ticked within MaxLag.
type LoopChecker struct {
	loop   Liveness
	maxLag time.Duration
}

func NewLoopChecker(loop Liveness, maxLag time.Duration) *LoopChecker {
	if maxLag <= 0 {
		maxLag = 5 * time.Second
	}
	return &LoopChecker{loop: loop, maxLag: maxLag}
}

func (c *LoopChecker) Name() string { return "player_loop" }

func (c *LoopChecker) Check(context.Context) CheckResult {
	if !c.loop.Healthy(c.maxLag) {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "player loop not running",
			Error:   fmt.Sprintf("no heartbeat within %s", c.maxLag),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "player loop running"}
}

// CheckDataDir verifies that path exists, is a directory and accepts writes.
// It runs once at startup before any store is opened.
func CheckDataDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("data directory does not exist: %s", path)
		}
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path is not a directory: %s", path)
	}
	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("data directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)
	return nil
}
