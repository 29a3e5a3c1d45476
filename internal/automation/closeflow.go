/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/friendsincode/autopunch/internal/timers"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// CloseTiming paces the close flow.
type CloseTiming struct {
	RecentsDelay   time.Duration
	ClearAllDelay  time.Duration
	HomeAfterSwipe time.Duration
	PortTimeout    time.Duration
}

// DefaultCloseTiming returns the production pacing.
func DefaultCloseTiming() CloseTiming {
	return CloseTiming{
		RecentsDelay:   500 * time.Millisecond,
		ClearAllDelay:  1500 * time.Millisecond,
		HomeAfterSwipe: 500 * time.Millisecond,
		PortTimeout:    15 * time.Second,
	}
}

// CloseFlow backgrounds the target application and clears it from recents.
// It runs once per call, never retries and swallows every error.
type CloseFlow struct {
	host     Host
	gestures *GestureDispatcher
	timers   *timers.Set
	timing   CloseTiming
	logger   zerolog.Logger

	// run numbers CloseApp calls; steps of an older call stop at the next step.
	run atomic.Uint64
}

// NewCloseFlow creates a close flow over host.
func NewCloseFlow(host Host, clock clockwork.Clock, logger zerolog.Logger) *CloseFlow {
	logger = logger.With().Str("component", "close_flow").Logger()
	return &CloseFlow{
		host:     host,
		gestures: NewGestureDispatcher(host.Gestures, logger),
		timers:   timers.NewSet(clock),
		timing:   DefaultCloseTiming(),
		logger:   logger,
	}
}

// CloseApp goes home, opens recents and clears it. A new call cancels every
// pending step of an earlier one, so only the latest sequence runs.
func (f *CloseFlow) CloseApp(packageID string) {
	f.logger.Info().Str("package", packageID).Msg("closing app")

	run := f.run.Add(1)
	f.timers.CancelAll()
	f.goHome()
	f.timers.After("recents", f.timing.RecentsDelay, func() {
		if f.superseded(run) {
			return
		}
		ctx, cancel := f.portContext()
		defer cancel()
		if f.host.Launcher != nil {
			if err := safeCall(func() error { return f.host.Launcher.OpenRecents(ctx) }); err != nil {
				f.logger.Warn().Err(err).Msg("open recents failed")
			}
		}
		if f.superseded(run) {
			return
		}
		f.timers.After("clear", f.timing.ClearAllDelay, func() { f.clear(run, packageID) })
	})
}

// Pending reports whether the flow still has steps pending or running.
func (f *CloseFlow) Pending() bool {
	return !f.timers.Idle()
}

// Stop cancels any pending steps.
func (f *CloseFlow) Stop() {
	f.run.Add(1)
	f.timers.CancelAll()
}

func (f *CloseFlow) clear(run uint64, packageID string) {
	if f.superseded(run) {
		return
	}
	ctx, cancel := f.portContext()
	defer cancel()

	tree := snapshot(ctx, f.host.Tree)
	if tree != nil {
		for _, m := range tree.FindCandidates(ClearAllLabels) {
			if f.gestures.Click(ctx, m.Node) {
				f.logger.Info().Str("package", packageID).Str("label", m.Label).Msg("cleared recents")
				telemetry.CloseFlowTotal.WithLabelValues("clear_all").Inc()
				return
			}
		}
	}

	f.logger.Info().Str("package", packageID).Msg("no clear-all control, swiping card away")
	telemetry.CloseFlowTotal.WithLabelValues("swipe").Inc()
	f.gestures.SwipeUp(ctx, tree)
	if f.superseded(run) {
		return
	}
	f.timers.After("swipe_home", f.timing.HomeAfterSwipe, f.goHome)
}

func (f *CloseFlow) superseded(run uint64) bool {
	return f.run.Load() != run
}

func (f *CloseFlow) goHome() {
	if f.host.Launcher == nil {
		return
	}
	ctx, cancel := f.portContext()
	defer cancel()
	if err := safeCall(func() error { return f.host.Launcher.GoHome(ctx) }); err != nil {
		f.logger.Warn().Err(err).Msg("go home failed")
	}
}

func (f *CloseFlow) portContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), f.timing.PortTimeout)
}
