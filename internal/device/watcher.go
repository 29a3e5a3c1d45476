/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package device

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// FocusSource reports the focused window.
type FocusSource interface {
	FocusedWindow(ctx context.Context) (Focus, error)
}

// SessionTarget is the part of the step engine the watcher feeds.
type SessionTarget interface {
	Target() (string, bool)
	OnUIChanged(pkg string)
}

// Watcher turns focus changes into UI-change notifications. It only polls
// the device while a session is active.
type Watcher struct {
	source   FocusSource
	target   SessionTarget
	clock    clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger

	last Focus
}

// NewWatcher creates a watcher polling every interval.
func NewWatcher(source FocusSource, target SessionTarget, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Watcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		source:   source,
		target:   target,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "ui_watcher").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			w.poll(ctx)
		case <-ctx.Done():
			w.logger.Debug().Msg("ui watcher stopped")
			return
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	if _, active := w.target.Target(); !active {
		w.last = Focus{}
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	focus, err := w.source.FocusedWindow(pollCtx)
	if err != nil {
		w.logger.Debug().Err(err).Msg("focus query failed")
		return
	}
	if focus == w.last {
		return
	}
	w.last = focus
	w.logger.Debug().Str("package", focus.Package).Str("window", focus.Window).Msg("focus changed")
	w.target.OnUIChanged(focus.Package)
}
