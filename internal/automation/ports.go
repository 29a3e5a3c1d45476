/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"context"
	"time"

	"github.com/friendsincode/autopunch/internal/uitree"
)

// TreeProvider supplies an immutable snapshot of the foreground UI.
type TreeProvider interface {
	Snapshot(ctx context.Context) (*uitree.Tree, error)
}

// GesturePort issues synthetic input.
type GesturePort interface {
	Tap(ctx context.Context, x, y int) error
	// Swipe returns once the gesture has completed.
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error
	// PerformClick clicks a node through the host's accessibility action.
	PerformClick(ctx context.Context, n *uitree.Node) error
}

// AppLauncher starts applications and navigates the system UI.
type AppLauncher interface {
	// Launch returns an error when no launchable target exists for packageID.
	Launch(ctx context.Context, packageID string) error
	GoHome(ctx context.Context) error
	OpenRecents(ctx context.Context) error
}

// ScreenWaker turns the screen on for a while. Failures are not fatal.
type ScreenWaker interface {
	Wake(ctx context.Context, duration time.Duration) error
}

// Listener receives the terminal result of a punch session.
type Listener interface {
	OnPunchResult(success bool, message string)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(success bool, message string)

// OnPunchResult calls f.
func (f ListenerFunc) OnPunchResult(success bool, message string) {
	f(success, message)
}

// ResultObserver is a Listener that wants the full session record. The
// engine calls OnSessionResult instead of OnPunchResult on it.
type ResultObserver interface {
	Listener
	OnSessionResult(r Result)
}

// Listeners fans a result out to several listeners in order.
type Listeners []Listener

// OnPunchResult notifies every listener.
func (ls Listeners) OnPunchResult(success bool, message string) {
	for _, l := range ls {
		if l != nil {
			l.OnPunchResult(success, message)
		}
	}
}

// OnSessionResult notifies every listener, passing r to observers.
func (ls Listeners) OnSessionResult(r Result) {
	for _, l := range ls {
		if l != nil {
			deliver(l, r)
		}
	}
}

func deliver(l Listener, r Result) {
	if o, ok := l.(ResultObserver); ok {
		o.OnSessionResult(r)
		return
	}
	l.OnPunchResult(r.Success, r.Message)
}

// Host groups the collaborators a punch session or close flow talks to.
type Host struct {
	Tree     TreeProvider
	Gestures GesturePort
	Launcher AppLauncher
	Waker    ScreenWaker
	Listener Listener
}
