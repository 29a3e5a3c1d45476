/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAfterFiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	set := NewSet(clock)
	var fired atomic.Int32

	set.After("step", 5*time.Second, func() { fired.Add(1) })
	if !set.Pending("step") {
		t.Fatal("expected pending timer")
	}

	clock.Advance(4 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("fired early")
	}

	clock.Advance(time.Second)
	eventually(t, func() bool { return fired.Load() == 1 })
	if set.Pending("step") {
		t.Error("fired timer should no longer be pending")
	}

	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1", fired.Load())
	}
}

func TestAfterReplacesPendingKey(t *testing.T) {
	clock := clockwork.NewFakeClock()
	set := NewSet(clock)
	var first, second atomic.Int32

	set.After("alarm", 10*time.Second, func() { first.Add(1) })
	set.After("alarm", 20*time.Second, func() { second.Add(1) })

	if set.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", set.Len())
	}

	clock.Advance(15 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatal("replaced timer fired")
	}

	clock.Advance(5 * time.Second)
	eventually(t, func() bool { return second.Load() == 1 })
	if first.Load() != 0 {
		t.Error("replaced timer fired late")
	}
}

func TestCancelAndCancelAll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	set := NewSet(clock)
	var fired atomic.Int32

	set.After("a", time.Second, func() { fired.Add(1) })
	set.After("b", time.Second, func() { fired.Add(1) })
	set.After("c", time.Second, func() { fired.Add(1) })

	if !set.Cancel("a") {
		t.Error("Cancel(a) should report a pending timer")
	}
	if set.Cancel("a") {
		t.Error("second Cancel(a) should report nothing pending")
	}
	set.CancelAll()
	if set.Len() != 0 {
		t.Fatalf("Len() = %d after CancelAll", set.Len())
	}

	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("cancelled timers fired %d times", fired.Load())
	}
}

func TestAtAndDue(t *testing.T) {
	start := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	set := NewSet(clock)
	var fired atomic.Int32

	at := start.Add(50 * time.Minute)
	set.At("morning", at, func() { fired.Add(1) })

	due, ok := set.Due("morning")
	if !ok || !due.Equal(at) {
		t.Fatalf("Due() = %v, %v; want %v", due, ok, at)
	}

	clock.Advance(50 * time.Minute)
	eventually(t, func() bool { return fired.Load() == 1 })
}

func TestIdleCoversRunningCallbacks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	set := NewSet(clock)
	release := make(chan struct{})
	entered := make(chan struct{})

	set.After("home", time.Second, func() {
		close(entered)
		<-release
	})
	if set.Idle() {
		t.Fatal("set with a pending timer is not idle")
	}

	clock.Advance(time.Second)
	<-entered
	if set.Len() != 0 {
		t.Errorf("Len = %d while callback runs, want 0", set.Len())
	}
	if set.Idle() {
		t.Error("set is not idle while a callback runs")
	}

	close(release)
	eventually(t, set.Idle)
}
