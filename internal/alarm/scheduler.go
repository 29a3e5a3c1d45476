/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/friendsincode/autopunch/internal/events"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Scheduler computes trigger instants and arms them on a Service.
type Scheduler struct {
	svc    Service
	clock  clockwork.Clock
	loc    *time.Location
	logger zerolog.Logger
	bus    events.Publisher

	mu   sync.Mutex
	intn func(n int) int
	cfg  models.ScheduleConfig
}

// NewScheduler creates a scheduler. Times of day are interpreted in loc.
func NewScheduler(svc Service, clock clockwork.Clock, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		svc:    svc,
		clock:  clock,
		loc:    loc,
		logger: logger.With().Str("component", "alarm_scheduler").Logger(),
		intn:   rand.IntN,
		cfg:    models.DefaultScheduleConfig(),
	}
}

// SetRandom replaces the uniform source used for jitter. intn(n) must return
// a value in [0, n).
func (s *Scheduler) SetRandom(intn func(n int) int) {
	s.mu.Lock()
	s.intn = intn
	s.mu.Unlock()
}

// SetPublisher publishes EventAlarmArmed and EventScheduleApplied to p.
func (s *Scheduler) SetPublisher(p events.Publisher) {
	s.mu.Lock()
	s.bus = p
	s.mu.Unlock()
}

// Config returns the most recently applied configuration.
func (s *Scheduler) Config() models.ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply arms every class for cfg when enabled and cancels everything otherwise.
func (s *Scheduler) Apply(cfg models.ScheduleConfig) {
	s.mu.Lock()
	s.cfg = cfg
	bus := s.bus
	s.mu.Unlock()

	if !cfg.Enabled {
		s.CancelAll()
	} else {
		s.SetRecurringWindow(Morning, cfg.MorningWindow)
		s.SetRecurringWindow(Evening, cfg.EveningWindow)
		s.SetCloseTimes(cfg.CloseTimes)
	}

	s.logger.Info().
		Bool("enabled", cfg.Enabled).
		Str("morning", cfg.MorningWindow.String()).
		Str("evening", cfg.EveningWindow.String()).
		Int("close_times", len(cfg.CloseTimes)).
		Str("target", cfg.TargetApp.PackageID).
		Msg("schedule applied")
	if bus != nil {
		bus.Publish(events.EventScheduleApplied, events.Payload{"enabled": cfg.Enabled})
	}
}

// SetRecurringWindow arms id at a jittered instant inside window and returns it.
func (s *Scheduler) SetRecurringWindow(id ClassID, window models.TimeRange) time.Time {
	now := s.now()
	at := s.nextInWindow(window, now, now)
	s.arm(id, at, window.String())
	return at
}

// SetCloseTimes replaces every close slot with the normalized times and
// returns the armed instants in slot order.
func (s *Scheduler) SetCloseTimes(times []models.TimeOfDay) []time.Time {
	for i := 0; i < MaxCloseAlarms; i++ {
		s.svc.Cancel(Close(i))
	}

	now := s.now()
	normalized := models.NormalizeCloseTimes(times)
	var armed []time.Time
	for i, tod := range normalized {
		if i >= MaxCloseAlarms {
			s.logger.Warn().Int("dropped", len(normalized)-MaxCloseAlarms).Msg("too many close times")
			break
		}
		at := nextOccurrence(tod, now)
		s.arm(Close(i), at, tod.String())
		armed = append(armed, at)
	}
	return armed
}

// CancelAll disarms morning, evening and every close slot.
func (s *Scheduler) CancelAll() {
	for _, id := range AllClasses() {
		s.svc.Cancel(id)
	}
	s.logger.Info().Msg("all alarms cancelled")
}

// Rearm schedules the next occurrence of a class that just fired, using cfg.
// A window class never fires twice in the same window: it rearms no earlier
// than the end of today's window, so the next draw always lands in the
// following day's window, even when today's fire came early in the window.
// It reports false when the class has no configured occurrence any more.
func (s *Scheduler) Rearm(id ClassID, cfg models.ScheduleConfig) (time.Time, bool) {
	now := s.now()

	switch id {
	case Morning, Evening:
		window := cfg.MorningWindow
		if id == Evening {
			window = cfg.EveningWindow
		}
		notBefore := now
		if end := windowEnd(window).On(now); end.After(notBefore) {
			notBefore = end
		}
		at := s.nextInWindow(window, now, notBefore)
		s.arm(id, at, window.String())
		return at, true
	}

	i, ok := id.CloseIndex()
	if !ok {
		s.logger.Warn().Str("class", string(id)).Msg("rearm of unknown alarm class")
		return time.Time{}, false
	}
	normalized := models.NormalizeCloseTimes(cfg.CloseTimes)
	if i >= len(normalized) {
		s.svc.Cancel(id)
		return time.Time{}, false
	}
	at := nextOccurrence(normalized[i], now)
	s.arm(id, at, normalized[i].String())
	return at, true
}

// Plan returns the instants Apply would arm for cfg, without arming anything.
func (s *Scheduler) Plan(cfg models.ScheduleConfig) []Armed {
	rec := &recorder{}
	plan := NewScheduler(rec, s.clock, s.loc, zerolog.Nop())

	s.mu.Lock()
	plan.intn = s.intn
	s.mu.Unlock()

	cfg.Enabled = true
	plan.Apply(cfg)
	return rec.armed()
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *Scheduler) arm(id ClassID, at time.Time, source string) {
	s.svc.Schedule(id, at)
	s.logger.Info().Str("class", string(id)).Str("source", source).Time("at", at).Msg("alarm set")

	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()
	if bus != nil {
		bus.Publish(events.EventAlarmArmed, events.Payload{
			"class": string(id),
			"at":    at.UTC().Format(time.RFC3339),
		})
	}
}

// nextInWindow draws a minute inside window on now's day, moving it to the
// following day when it is not strictly after notBefore.
func (s *Scheduler) nextInWindow(window models.TimeRange, now, notBefore time.Time) time.Time {
	t := s.draw(window).On(now)
	if !t.After(notBefore) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// draw picks a minute uniformly from [start, end], or start for a degenerate window.
func (s *Scheduler) draw(window models.TimeRange) models.TimeOfDay {
	if window.Degenerate() {
		return window.Start
	}
	span := window.End.Minutes() - window.Start.Minutes()

	s.mu.Lock()
	offset := s.intn(span + 1)
	s.mu.Unlock()

	return models.TimeOfDayFromMinutes(window.Start.Minutes() + offset)
}

func windowEnd(window models.TimeRange) models.TimeOfDay {
	if window.Degenerate() {
		return window.Start
	}
	return window.End
}

// nextOccurrence is today's instant of tod, or tomorrow's when that is not in the future.
func nextOccurrence(tod models.TimeOfDay, now time.Time) time.Time {
	t := tod.On(now)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// recorder is a Service that only remembers what it was asked to arm.
type recorder struct {
	mu      sync.Mutex
	pending map[ClassID]time.Time
}

func (r *recorder) Schedule(id ClassID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		r.pending = make(map[ClassID]time.Time)
	}
	r.pending[id] = at
}

func (r *recorder) Cancel(id ClassID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

func (r *recorder) armed() []Armed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Armed, 0, len(r.pending))
	for id, at := range r.pending {
		out = append(out, Armed{Class: id, At: at})
	}
	sortArmed(out)
	return out
}
