/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/autopunch/internal/debounce"
	"github.com/friendsincode/autopunch/internal/events"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type memStore struct {
	mu  sync.Mutex
	cfg models.ScheduleConfig
	err error
}

func (m *memStore) GetScheduleConfig() (models.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.err
}

type fakePunch struct {
	mu     sync.Mutex
	starts []models.AppIdentity
	active bool
	err    error
}

func (f *fakePunch) Start(target models.AppIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, target)
	return f.err
}

func (f *fakePunch) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakePunch) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

type fakeCloser struct {
	mu       sync.Mutex
	packages []string
}

func (f *fakeCloser) CloseApp(packageID string) {
	f.mu.Lock()
	f.packages = append(f.packages, packageID)
	f.mu.Unlock()
}

func (f *fakeCloser) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.packages)
}

type harness struct {
	scheduler *Scheduler
	svc       *ClockService
	clock     *clockwork.FakeClock
	store     *memStore
	punch     *fakePunch
	closer    *fakeCloser
	bus       *events.Bus
	d         *Dispatcher
}

func newHarness(t *testing.T, now time.Time, cfg models.ScheduleConfig) *harness {
	t.Helper()
	h := &harness{
		store:  &memStore{cfg: cfg},
		punch:  &fakePunch{},
		closer: &fakeCloser{},
		bus:    events.NewBus(),
	}
	h.scheduler, h.svc, h.clock = newTestScheduler(t, now)
	guard := debounce.New(h.clock, time.Minute)
	h.d = NewDispatcher(h.scheduler, h.store, h.punch, h.closer, guard, h.bus, zerolog.Nop())
	h.svc.SetHandler(h.d.Fire)
	return h
}

func morningOnly() models.ScheduleConfig {
	return models.ScheduleConfig{
		MorningWindow:    window("08:50", "09:20"),
		EveningWindow:    window("18:40", "19:10"),
		SelectedWeekdays: models.NewWeekdaySet(models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday),
		TargetApp:        models.PresetApp(models.AppFeishu),
		Enabled:          true,
	}
}

func TestMorningAlarmOnWeekdayStartsPunch(t *testing.T) {
	h := newHarness(t, testDay, morningOnly())
	fired := h.bus.Subscribe(events.EventAlarmFired)
	h.scheduler.Apply(h.store.cfg)

	at, ok := armedAt(h.svc, Morning)
	if !ok {
		t.Fatal("morning not armed")
	}

	h.clock.Advance(at.Sub(testDay))
	eventually(t, func() bool { return h.punch.Starts() == 1 }, "punch started")

	if got := h.punch.starts[0]; got.PackageID != models.PackageFeishu {
		t.Errorf("started %+v, want Feishu", got)
	}

	eventually(t, func() bool {
		next, ok := armedAt(h.svc, Morning)
		return ok && next.Day() == 15
	}, "morning rearmed for Thursday")
	next, _ := armedAt(h.svc, Morning)
	lo := time.Date(2026, 10, 15, 8, 50, 0, 0, time.UTC)
	hi := time.Date(2026, 10, 15, 9, 20, 0, 0, time.UTC)
	if next.Before(lo) || next.After(hi) {
		t.Errorf("next morning %s outside Thursday's window", next)
	}

	p := <-fired
	if p["class"] != "morning" || p["gated"] != false {
		t.Errorf("fired payload = %v", p)
	}
}

func TestMorningAlarmOnSaturdayIsGated(t *testing.T) {
	saturday := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	h := newHarness(t, saturday, morningOnly())
	h.scheduler.Apply(h.store.cfg)

	at, _ := armedAt(h.svc, Morning)
	h.clock.Advance(at.Sub(saturday))

	eventually(t, func() bool {
		next, ok := armedAt(h.svc, Morning)
		return ok && next.Day() == 18
	}, "morning rearmed for Sunday")

	time.Sleep(10 * time.Millisecond)
	if h.punch.Starts() != 0 {
		t.Error("punch must not start on an unselected weekday")
	}
}

func TestCloseAlarmRunsCloseFlow(t *testing.T) {
	cfg := morningOnly()
	cfg.CloseTimes = []models.TimeOfDay{tod("09:30"), tod("18:20")}
	h := newHarness(t, testDay.Add(9*time.Hour+25*time.Minute), cfg)
	h.scheduler.Apply(cfg)

	h.clock.Advance(5 * time.Minute)
	eventually(t, func() bool { return h.closer.Closes() == 1 }, "close flow invoked")

	eventually(t, func() bool {
		at, ok := armedAt(h.svc, Close(0))
		return ok && at.Equal(time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC))
	}, "close_0 rearmed for tomorrow")
	if at, _ := armedAt(h.svc, Close(1)); !at.Equal(time.Date(2026, 10, 14, 18, 20, 0, 0, time.UTC)) {
		t.Errorf("close_1 = %s, want untouched 18:20 today", at)
	}
	if h.punch.Starts() != 0 {
		t.Error("close alarms must not punch")
	}
}

func TestPunchDebounce(t *testing.T) {
	h := newHarness(t, testDay, morningOnly())
	suppressed := h.bus.Subscribe(events.EventPunchSuppressed)

	if err := h.d.PunchNow("manual"); err != nil {
		t.Fatalf("first punch: %v", err)
	}
	if err := h.d.PunchNow("manual"); !errors.Is(err, ErrDebounced) {
		t.Fatalf("second punch error = %v, want ErrDebounced", err)
	}

	// Session ends, but the cooldown still holds.
	h.d.OnPunchResult(true, "punched")
	h.clock.Advance(30 * time.Second)
	if err := h.d.PunchNow("manual"); !errors.Is(err, ErrDebounced) {
		t.Fatalf("punch inside cooldown error = %v, want ErrDebounced", err)
	}

	h.clock.Advance(30 * time.Second)
	if err := h.d.PunchNow("manual"); err != nil {
		t.Fatalf("punch after cooldown: %v", err)
	}
	if got := h.punch.Starts(); got != 2 {
		t.Errorf("starts = %d, want 2", got)
	}

	p := <-suppressed
	if p["why"] != "cooldown" {
		t.Errorf("suppressed payload = %v", p)
	}
}

func TestPunchSkipsActiveSession(t *testing.T) {
	h := newHarness(t, testDay, morningOnly())
	h.punch.active = true

	if err := h.d.PunchNow("alarm"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("error = %v, want ErrSessionActive", err)
	}
	if h.punch.Starts() != 0 {
		t.Error("Start must not be called while a session is active")
	}

	// The guard was released, so the next trigger is only held back by the cooldown.
	h.punch.active = false
	h.clock.Advance(time.Minute)
	if err := h.d.PunchNow("alarm"); err != nil {
		t.Fatalf("punch after session ended: %v", err)
	}
}

func TestFireUsesLastAppliedConfigWhenStoreFails(t *testing.T) {
	h := newHarness(t, testDay, morningOnly())
	h.scheduler.Apply(h.store.cfg)
	h.store.mu.Lock()
	h.store.err = errors.New("settings unreadable")
	h.store.mu.Unlock()

	h.d.Fire(Morning)

	if h.punch.Starts() != 1 {
		t.Error("fire should fall back to the applied config")
	}
	if _, ok := armedAt(h.svc, Morning); !ok {
		t.Error("morning should stay armed")
	}
}
