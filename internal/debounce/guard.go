/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package debounce suppresses duplicate triggers that arrive while a previous
// one is still running or within a cooldown after it started.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultCooldown is the minimum spacing between accepted triggers.
const DefaultCooldown = 60 * time.Second

// Guard owns the run flag and the last accepted trigger time.
type Guard struct {
	clock    clockwork.Clock
	cooldown time.Duration

	mu       sync.Mutex
	running  bool
	last     time.Time
	accepted bool
}

// New creates a guard. A non-positive cooldown uses DefaultCooldown.
func New(clock clockwork.Clock, cooldown time.Duration) *Guard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{clock: clock, cooldown: cooldown}
}

// TryAcquire accepts a trigger unless one is running or the last accepted
// trigger is younger than the cooldown.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if g.running {
		return false
	}
	if g.accepted && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.running = true
	g.accepted = true
	g.last = now
	return true
}

// Release clears the run flag. The cooldown keeps counting from acquisition.
func (g *Guard) Release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

// Running reports whether an accepted trigger has not been released yet.
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
