// SPDX-License-Identifier: Apache-2.0

// Package watch triggers update cycles when the external build regenerates
// the list, and on a periodic ticker as a fallback.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/asankah/chromium-api-list/internal/log"
)

// Trigger is invoked for every (debounced) update reason.
type Trigger func(ctx context.Context, reason string)

// Watcher observes the generated list file and fires the trigger.
type Watcher struct {
	listPath string
	interval time.Duration // 0 disables the ticker
	debounce time.Duration
	trigger  Trigger
	logger   zerolog.Logger
}

// New creates a Watcher for the generated list at listPath.
func New(listPath string, interval time.Duration, trigger Trigger) *Watcher {
	return &Watcher{
		listPath: listPath,
		interval: interval,
		debounce: 2 * time.Second,
		trigger:  trigger,
		logger:   log.WithComponent("watch"),
	}
}

// Start begins watching until ctx is cancelled. The parent directory is
// watched because ninja replaces the file instead of rewriting it in place.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}

	dir := filepath.Dir(w.listPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info().
		Str(log.FieldEvent, "watch.started").
		Str(log.FieldPath, w.listPath).
		Dur("interval", w.interval).
		Msg("watching build output")

	go w.loop(ctx, watcher)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() { _ = watcher.Close() }()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if w.interval > 0 {
		ticker = time.NewTicker(w.interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	base := filepath.Base(w.listPath)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			w.trigger(ctx, "interval")
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			// The build writes the CSV incrementally; wait for the burst to
			// settle before triggering.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, func() {
				w.trigger(ctx, "build_output_changed")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "watch.error").
				Msg("watcher error")
		}
	}
}
