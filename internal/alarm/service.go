/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/friendsincode/autopunch/internal/timers"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Service is an exact wake timer keyed by class. Scheduling a class that is
// already armed replaces the earlier instant.
type Service interface {
	Schedule(id ClassID, at time.Time)
	Cancel(id ClassID)
}

// Armed is one pending alarm.
type Armed struct {
	Class ClassID   `json:"class"`
	At    time.Time `json:"at"`
}

// ClockService delivers alarms from an in-process clock.
type ClockService struct {
	timers *timers.Set
	logger zerolog.Logger

	mu      sync.RWMutex
	handler func(ClassID)
}

// NewClockService creates a service driven by clock.
func NewClockService(clock clockwork.Clock, logger zerolog.Logger) *ClockService {
	return &ClockService{
		timers: timers.NewSet(clock),
		logger: logger.With().Str("component", "alarm_service").Logger(),
	}
}

// SetHandler sets the function invoked when an alarm fires.
func (s *ClockService) SetHandler(fn func(ClassID)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// Schedule arms id at instant at.
func (s *ClockService) Schedule(id ClassID, at time.Time) {
	s.timers.At(string(id), at, func() { s.fire(id) })
	telemetry.AlarmsArmed.WithLabelValues(string(id)).Set(float64(at.Unix()))
	s.logger.Debug().Str("class", string(id)).Time("at", at).Msg("alarm armed")
}

// Cancel disarms id.
func (s *ClockService) Cancel(id ClassID) {
	if s.timers.Cancel(string(id)) {
		s.logger.Debug().Str("class", string(id)).Msg("alarm cancelled")
	}
	telemetry.AlarmsArmed.WithLabelValues(string(id)).Set(0)
}

// Armed lists pending alarms in firing order.
func (s *ClockService) Armed() []Armed {
	var out []Armed
	for _, key := range s.timers.Keys() {
		if at, ok := s.timers.Due(key); ok {
			out = append(out, Armed{Class: ClassID(key), At: at})
		}
	}
	sortArmed(out)
	return out
}

// Stop disarms everything.
func (s *ClockService) Stop() {
	s.timers.CancelAll()
}

func (s *ClockService) fire(id ClassID) {
	telemetry.AlarmsArmed.WithLabelValues(string(id)).Set(0)

	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	if handler == nil {
		s.logger.Warn().Str("class", string(id)).Msg("alarm fired with no handler")
		return
	}
	handler(id)
}

func sortArmed(a []Armed) {
	sort.Slice(a, func(i, j int) bool {
		if !a[i].At.Equal(a[j].At) {
			return a[i].At.Before(a[j].At)
		}
		return a[i].Class < a[j].Class
	})
}
