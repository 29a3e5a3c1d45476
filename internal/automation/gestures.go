/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/friendsincode/autopunch/internal/uitree"
	"github.com/rs/zerolog"
)

// Screen size used when a snapshot carries no usable root bounds.
const (
	FallbackScreenWidth  = 1080
	FallbackScreenHeight = 2400
)

const (
	scrollDuration  = 500 * time.Millisecond
	swipeUpDuration = 200 * time.Millisecond
)

// GestureDispatcher turns matched elements into clicks and issues the scroll
// and swipe gestures the workflows need. Port errors and panics are logged and
// reported as false.
type GestureDispatcher struct {
	port   GesturePort
	logger zerolog.Logger
}

// NewGestureDispatcher creates a dispatcher over port.
func NewGestureDispatcher(port GesturePort, logger zerolog.Logger) *GestureDispatcher {
	return &GestureDispatcher{
		port:   port,
		logger: logger.With().Str("component", "gestures").Logger(),
	}
}

// Click applies the click contract: click the node itself when clickable,
// otherwise its nearest clickable ancestor, otherwise tap its bounds center.
func (d *GestureDispatcher) Click(ctx context.Context, n *uitree.Node) bool {
	if n == nil {
		return false
	}
	if n.Clickable {
		return d.guard("click", func() error { return d.port.PerformClick(ctx, n) })
	}
	for _, a := range n.Ancestors() {
		if a.Clickable {
			return d.guard("click", func() error { return d.port.PerformClick(ctx, a) })
		}
	}
	return d.Tap(ctx, n.Bounds)
}

// Tap taps the center of r.
func (d *GestureDispatcher) Tap(ctx context.Context, r uitree.Rect) bool {
	if r.Empty() {
		d.logger.Debug().Str("bounds", r.String()).Msg("tap skipped, empty bounds")
		telemetry.GestureFailuresTotal.WithLabelValues("tap").Inc()
		return false
	}
	x, y := r.Center()
	return d.guard("tap", func() error { return d.port.Tap(ctx, x, y) })
}

// ScrollDown drags from 70% to 30% of the screen height along the center line.
func (d *GestureDispatcher) ScrollDown(ctx context.Context, tree *uitree.Tree) bool {
	w, h := screenSize(tree)
	x := w / 2
	return d.guard("scroll", func() error {
		return d.port.Swipe(ctx, x, h*7/10, x, h*3/10, scrollDuration)
	})
}

// SwipeUp flings the foreground card from mid screen to the top tenth.
func (d *GestureDispatcher) SwipeUp(ctx context.Context, tree *uitree.Tree) bool {
	w, h := screenSize(tree)
	x := w / 2
	return d.guard("swipe", func() error {
		return d.port.Swipe(ctx, x, h/2, x, h/10, swipeUpDuration)
	})
}

func (d *GestureDispatcher) guard(kind string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("kind", kind).Interface("panic", r).Msg("gesture port panicked")
			telemetry.GestureFailuresTotal.WithLabelValues(kind).Inc()
			ok = false
		}
	}()

	if d.port == nil {
		d.logger.Warn().Str("kind", kind).Msg("no gesture port configured")
		return false
	}
	if err := fn(); err != nil {
		d.logger.Warn().Err(err).Str("kind", kind).Msg("gesture failed")
		telemetry.GestureFailuresTotal.WithLabelValues(kind).Inc()
		return false
	}
	return true
}

func screenSize(tree *uitree.Tree) (int, int) {
	if tree == nil {
		return FallbackScreenWidth, FallbackScreenHeight
	}
	return tree.ScreenSize(FallbackScreenWidth, FallbackScreenHeight)
}

// safeCall runs a launcher or waker call, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("port panic: %v", r)
		}
	}()
	return fn()
}
