// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultWatchDebounce = 500 * time.Millisecond

// fileWatcher calls onChange after writes to a single file settle. The parent
// directory is watched so editors that replace the file by rename are seen.
type fileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	logger   zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startFileWatcher(path string, debounce time.Duration, onChange func(), logger zerolog.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve playlist path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch playlist dir: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw := &fileWatcher{
		path:     abs,
		watcher:  watcher,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		cancel:   cancel,
	}
	fw.wg.Add(1)
	go fw.watchLoop(ctx)

	logger.Info().
		Str("event", "playlist.watch_started").
		Str("path", abs).
		Msg("watching playlist file for changes")
	return fw, nil
}

func (fw *fileWatcher) watchLoop(ctx context.Context) {
	defer fw.wg.Done()

	// Debounce: editors emit several events per save.
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fw.logger.Debug().
				Str("event", "playlist.file_changed").
				Str("op", event.Op.String()).
				Msg("playlist file changed")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(fw.debounce, func() {
				if ctx.Err() == nil {
					fw.onChange()
				}
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error().
				Err(err).
				Str("event", "playlist.watcher_error").
				Msg("playlist watcher error")
		}
	}
}

// Stop ends watching and waits for the watch goroutine.
func (fw *fileWatcher) Stop() {
	fw.cancel()
	_ = fw.watcher.Close()
	fw.wg.Wait()
}
