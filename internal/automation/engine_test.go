/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, dev *fakeDevice, timing Timing) (*Engine, *clockwork.FakeClock, *recordingListener) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	listener := &recordingListener{}
	e := NewEngine(dev.host(listener), clock, timing, zerolog.Nop())
	t.Cleanup(e.Stop)
	return e, clock, listener
}

func waitState(t *testing.T, e *Engine, state State, retries int) {
	t.Helper()
	eventually(t, func() bool {
		st := e.Status()
		return st.Session != nil && st.Session.State == state && st.Session.RetryCount == retries
	}, state.String())
}

func waitResults(t *testing.T, l *recordingListener, n int) {
	t.Helper()
	eventually(t, func() bool { return len(l.Results()) == n }, "listener results")
}

func TestEngineCompletesWorkflow(t *testing.T) {
	dev := &fakeDevice{tree: screen(
		button("工作台", true, 0, 2200),
		button("假勤", true, 100, 400),
		button("上班打卡", true, 400, 1200),
	)}
	e, clock, listener := newTestEngine(t, dev, Timing{})

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if dev.count("wake") != 1 || dev.count("launch:"+testPackage) != 1 {
		t.Fatalf("calls = %v, want wake and launch", dev.Calls())
	}
	if st := e.Status(); st.Session == nil || st.Session.State != StateLaunchingApp {
		t.Fatalf("status = %+v, want LaunchingApp", st)
	}

	clock.Advance(5 * time.Second)
	waitState(t, e, StateFindingAttendance, 0)

	clock.Advance(3 * time.Second)
	waitState(t, e, StatePunching, 0)

	clock.Advance(5 * time.Second)
	waitResults(t, listener, 1)

	if got := listener.Results()[0]; !got.success || got.message != MessagePunched {
		t.Errorf("result = %+v, want success %q", got, MessagePunched)
	}
	if e.Active() {
		t.Error("engine should be idle after success")
	}

	wantClicks := []string{"click:工作台", "click:假勤", "click:上班打卡"}
	var clicks []string
	for _, c := range dev.Calls() {
		if len(c) > 6 && c[:6] == "click:" {
			clicks = append(clicks, c)
		}
	}
	if len(clicks) != len(wantClicks) {
		t.Fatalf("clicks = %v, want %v", clicks, wantClicks)
	}
	for i := range wantClicks {
		if clicks[i] != wantClicks[i] {
			t.Errorf("click %d = %q, want %q", i, clicks[i], wantClicks[i])
		}
	}

	if dev.count("home") != 0 {
		t.Fatal("go home must wait for the grace period")
	}
	clock.Advance(2 * time.Second)
	eventually(t, func() bool { return dev.count("home") == 1 }, "go home after grace")

	last := e.Status().Last
	if last == nil || !last.Success {
		t.Errorf("last result = %+v, want success", last)
	}
}

func TestEngineStartWhileActive(t *testing.T) {
	dev := &fakeDevice{tree: screen()}
	e, _, listener := newTestEngine(t, dev, Timing{})

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := e.Status().Session.ID

	err := e.Start(models.PresetApp(models.AppDingTalk))
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}
	if got := e.Status().Session.ID; got != first {
		t.Errorf("session replaced: %s != %s", got, first)
	}
	if dev.count("launch:"+testPackage) != 1 {
		t.Errorf("launch count = %d, want 1", dev.count("launch:"+testPackage))
	}
	if len(listener.Results()) != 0 {
		t.Error("AlreadyRunning must not reach the listener")
	}
}

func TestEngineLaunchFailures(t *testing.T) {
	tests := []struct {
		name       string
		target     models.AppIdentity
		launchErr  error
		wantLaunch bool
	}{
		{name: "empty package", target: models.CustomApp("")},
		{name: "launcher error", target: models.PresetApp(models.AppFeishu), launchErr: errors.New("no launch intent"), wantLaunch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{tree: screen(), launchErr: tt.launchErr}
			e, clock, listener := newTestEngine(t, dev, Timing{})

			if err := e.Start(tt.target); err != nil {
				t.Fatalf("Start: %v", err)
			}

			results := listener.Results()
			if len(results) != 1 {
				t.Fatalf("results = %v, want one", results)
			}
			if results[0].success || results[0].message != "launch failed" {
				t.Errorf("result = %+v, want failure \"launch failed\"", results[0])
			}
			if e.Active() {
				t.Error("session should be gone")
			}
			if launched := dev.count("launch:"+tt.target.PackageID) > 0; launched != tt.wantLaunch {
				t.Errorf("launched = %v, want %v", launched, tt.wantLaunch)
			}

			clock.Advance(2 * time.Second)
			eventually(t, func() bool { return dev.count("home") == 1 }, "go home")
		})
	}
}

func TestEngineRetryEscalation(t *testing.T) {
	dev := &fakeDevice{tree: screen(button("消息", true, 0, 0))}
	e, clock, listener := newTestEngine(t, dev, Timing{})

	escalations := telemetry.StepTransitionsTotal.WithLabelValues("FindingWorkTab", "FindingAttendance")
	before := testutil.ToFloat64(escalations)

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(5 * time.Second)
	waitState(t, e, StateFindingWorkTab, 1)
	clock.Advance(2 * time.Second)
	waitState(t, e, StateFindingWorkTab, 2)
	clock.Advance(2 * time.Second)
	waitState(t, e, StateFindingAttendance, 0)

	if got := testutil.ToFloat64(escalations) - before; got != 1 {
		t.Errorf("FindingWorkTab -> FindingAttendance transitions = %v, want 1", got)
	}

	// Attendance misses scroll before every retry.
	clock.Advance(2 * time.Second)
	waitState(t, e, StateFindingAttendance, 1)
	clock.Advance(2 * time.Second)
	waitState(t, e, StateFindingAttendance, 2)
	clock.Advance(2 * time.Second)
	waitState(t, e, StatePunching, 0)
	if got := dev.count("swipe"); got != 3 {
		t.Errorf("scrolls = %d, want 3", got)
	}

	clock.Advance(2 * time.Second)
	waitState(t, e, StatePunching, 1)
	clock.Advance(2 * time.Second)
	waitState(t, e, StatePunching, 2)
	clock.Advance(2 * time.Second)
	waitResults(t, listener, 1)

	if got := listener.Results()[0]; got.success || got.message != "element not found" {
		t.Errorf("result = %+v, want failure \"element not found\"", got)
	}
	if dev.count("swipe") != 3 {
		t.Error("punch step must not scroll")
	}

	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if n := len(listener.Results()); n != 1 {
		t.Errorf("listener notified %d times, want 1", n)
	}
}

func TestEngineAlreadyPunched(t *testing.T) {
	dev := &fakeDevice{tree: screen(
		button("工作台", true, 0, 2200),
		button("假勤", true, 100, 400),
		button("今日已打卡", false, 400, 1200),
	)}
	e, clock, listener := newTestEngine(t, dev, Timing{})

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(5 * time.Second)
	waitState(t, e, StateFindingAttendance, 0)
	clock.Advance(3 * time.Second)
	waitState(t, e, StatePunching, 0)
	clock.Advance(5 * time.Second)
	waitResults(t, listener, 1)

	if got := listener.Results()[0]; !got.success || got.message != MessageAlreadyPunched {
		t.Errorf("result = %+v, want success %q", got, MessageAlreadyPunched)
	}
}

func TestEngineSessionTimeout(t *testing.T) {
	dev := &fakeDevice{tree: screen()}
	e, clock, listener := newTestEngine(t, dev, Timing{LaunchSettle: 2 * time.Minute})

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.Advance(59 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if len(listener.Results()) != 0 {
		t.Fatal("session ended before the timeout")
	}

	clock.Advance(time.Second)
	waitResults(t, listener, 1)
	if got := listener.Results()[0]; got.success || got.message != "timeout" {
		t.Errorf("result = %+v, want failure \"timeout\"", got)
	}
	if e.Active() {
		t.Error("session should be gone after timeout")
	}

	clock.Advance(2 * time.Second)
	eventually(t, func() bool { return dev.count("home") == 1 }, "go home after timeout")

	clock.Advance(5 * time.Minute)
	time.Sleep(10 * time.Millisecond)
	if n := len(listener.Results()); n != 1 {
		t.Errorf("listener notified %d times, want 1", n)
	}
	if dev.count("click:工作台") != 0 {
		t.Error("no step may run after the session ended")
	}
}

func TestEngineUIChangeTriggersEvaluation(t *testing.T) {
	dev := &fakeDevice{tree: screen()}
	e, clock, _ := newTestEngine(t, dev, Timing{})

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.OnUIChanged(testPackage)
	if e.timers.Pending(keyUI) {
		t.Fatal("UI changes are ignored while the app is launching")
	}

	clock.Advance(5 * time.Second)
	waitState(t, e, StateFindingWorkTab, 1)

	e.OnUIChanged("com.android.systemui")
	if e.timers.Pending(keyUI) {
		t.Fatal("UI changes from other packages must be ignored")
	}

	dev.setTree(screen(button("工作台", true, 0, 2200)))
	e.OnUIChanged(testPackage)
	e.OnUIChanged(testPackage)
	if !e.timers.Pending(keyUI) {
		t.Fatal("expected a pending UI evaluation")
	}

	clock.Advance(1500 * time.Millisecond)
	waitState(t, e, StateFindingAttendance, 0)
	if got := dev.count("click:工作台"); got != 1 {
		t.Errorf("work tab clicks = %d, want 1", got)
	}
}

func TestEngineSnapshotErrorsRetry(t *testing.T) {
	dev := &fakeDevice{treeErr: errors.New("uiautomator dump failed")}
	e, clock, _ := newTestEngine(t, dev, Timing{})

	if err := e.Start(models.PresetApp(models.AppDingTalk)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if dev.count("launch:"+models.PackageDingTalk) != 1 {
		t.Fatalf("calls = %v, want DingTalk launch", dev.Calls())
	}

	clock.Advance(5 * time.Second)
	waitState(t, e, StateFindingWorkTab, 1)
}

func TestTimingDefaults(t *testing.T) {
	got := Timing{RetryDelay: time.Second}.withDefaults()
	if got.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want explicit 1s", got.RetryDelay)
	}
	def := DefaultTiming()
	if got.SessionTimeout != def.SessionTimeout || got.MaxRetries != def.MaxRetries {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.settleBefore(StateFindingAttendance) != 3*time.Second {
		t.Error("work tab settle should be 3s")
	}
	if got.settleBefore(StatePunching) != 5*time.Second {
		t.Error("attendance settle should be 5s")
	}
}

func TestEngineStatusNotBlockedBySnapshot(t *testing.T) {
	dev := &fakeDevice{}
	stalled := newStalledTree(screen(button("工作台", true, 0, 2200)))
	host := dev.host(&recordingListener{})
	host.Tree = stalled
	clock := clockwork.NewFakeClock()
	e := NewEngine(host, clock, Timing{}, zerolog.Nop())
	t.Cleanup(e.Stop)

	if err := e.Start(models.PresetApp(models.AppFeishu)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(5 * time.Second)
	select {
	case <-stalled.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot never requested")
	}

	done := make(chan Status, 1)
	go func() {
		e.OnUIChanged(testPackage)
		done <- e.Status()
	}()
	select {
	case st := <-done:
		if st.Session == nil || st.Session.State != StateFindingWorkTab {
			t.Errorf("status = %+v, want FindingWorkTab while the snapshot is in flight", st)
		}
	case <-time.After(time.Second):
		t.Fatal("Status blocked behind an in-flight snapshot")
	}
	if !e.Active() {
		t.Error("session should be active during the snapshot")
	}

	close(stalled.release)
	waitState(t, e, StateFindingAttendance, 0)
	if dev.count("click:工作台") != 1 {
		t.Errorf("calls = %v, want one work tab click", dev.Calls())
	}
}
