/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timers provides keyed, cancelable one-shot timers. Scheduling a key
// that is already pending replaces the earlier timer, so a key never has more
// than one pending callback.
package timers

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type entry struct {
	timer clockwork.Timer
	gen   uint64
	due   time.Time
}

// Set holds pending timers by key.
type Set struct {
	clock clockwork.Clock

	mu      sync.Mutex
	gen     uint64
	pending map[string]entry
	running int
}

// NewSet creates an empty timer set driven by clock.
func NewSet(clock clockwork.Clock) *Set {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Set{
		clock:   clock,
		pending: make(map[string]entry),
	}
}

// Clock returns the clock driving the set.
func (s *Set) Clock() clockwork.Clock {
	return s.clock
}

// After schedules fn to run once after d under key, replacing any pending
// timer for the same key.
func (s *Set) After(key string, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	if old, ok := s.pending[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending[key] = entry{gen: gen, due: s.clock.Now().Add(d)}
	s.mu.Unlock()

	timer := s.clock.AfterFunc(d, func() {
		// A replaced or cancelled timer may already be past Stop; the
		// generation check drops it.
		if !s.claim(key, gen) {
			return
		}
		defer s.finished()
		fn()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.pending[key]; ok && cur.gen == gen {
		cur.timer = timer
		s.pending[key] = cur
		return
	}
	timer.Stop()
}

// At schedules fn at instant t under key. Instants in the past fire immediately.
func (s *Set) At(key string, t time.Time, fn func()) {
	s.After(key, t.Sub(s.clock.Now()), fn)
}

func (s *Set) claim(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.pending[key]
	if !ok || cur.gen != gen {
		return false
	}
	delete(s.pending, key)
	s.running++
	return true
}

func (s *Set) finished() {
	s.mu.Lock()
	s.running--
	s.mu.Unlock()
}

// Cancel stops the pending timer for key. It reports whether one was pending.
func (s *Set) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.pending[key]
	if !ok {
		return false
	}
	if cur.timer != nil {
		cur.timer.Stop()
	}
	delete(s.pending, key)
	return true
}

// CancelAll stops every pending timer.
func (s *Set) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cur := range s.pending {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		delete(s.pending, key)
	}
}

// Pending reports whether key has a pending timer.
func (s *Set) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Due returns the instant the pending timer for key fires.
func (s *Set) Due(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.pending[key]
	return cur.due, ok
}

// Len returns the number of pending timers.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Idle reports whether no timer is pending and no callback is running.
func (s *Set) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0 && s.running == 0
}

// Keys returns the pending keys.
func (s *Set) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	return keys
}
