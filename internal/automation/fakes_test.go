/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/autopunch/internal/uitree"
)

const testPackage = "com.ss.android.lark"

// fakeDevice implements every port and records what it was asked to do.
type fakeDevice struct {
	mu        sync.Mutex
	tree      *uitree.Tree
	treeErr   error
	launchErr error
	panicTap  bool
	calls     []string
	swipes    [][4]int
	durations []time.Duration
}

func (d *fakeDevice) setTree(tree *uitree.Tree) {
	d.mu.Lock()
	d.tree = tree
	d.mu.Unlock()
}

func (d *fakeDevice) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDevice) count(call string) int {
	n := 0
	for _, c := range d.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (d *fakeDevice) Snapshot(ctx context.Context) (*uitree.Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree, d.treeErr
}

func (d *fakeDevice) Tap(ctx context.Context, x, y int) error {
	if d.panicTap {
		panic("tap exploded")
	}
	d.record(fmt.Sprintf("tap:%d,%d", x, y))
	return nil
}

func (d *fakeDevice) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	d.mu.Lock()
	d.swipes = append(d.swipes, [4]int{x1, y1, x2, y2})
	d.durations = append(d.durations, duration)
	d.mu.Unlock()
	d.record("swipe")
	return nil
}

func (d *fakeDevice) PerformClick(ctx context.Context, n *uitree.Node) error {
	d.record("click:" + n.Label())
	return nil
}

func (d *fakeDevice) Launch(ctx context.Context, packageID string) error {
	d.record("launch:" + packageID)
	return d.launchErr
}

func (d *fakeDevice) GoHome(ctx context.Context) error {
	d.record("home")
	return nil
}

func (d *fakeDevice) OpenRecents(ctx context.Context) error {
	d.record("recents")
	return nil
}

func (d *fakeDevice) Wake(ctx context.Context, duration time.Duration) error {
	d.record("wake")
	return errors.New("screen already on")
}

func (d *fakeDevice) host(l Listener) Host {
	return Host{Tree: d, Gestures: d, Launcher: d, Waker: d, Listener: l}
}

// stalledTree holds every snapshot until release is closed.
type stalledTree struct {
	tree    *uitree.Tree
	entered chan struct{}
	release chan struct{}
}

func newStalledTree(tree *uitree.Tree) *stalledTree {
	return &stalledTree{tree: tree, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (s *stalledTree) Snapshot(ctx context.Context) (*uitree.Tree, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
		return s.tree, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type result struct {
	success bool
	message string
}

type recordingListener struct {
	mu      sync.Mutex
	results []result
}

func (l *recordingListener) OnPunchResult(success bool, message string) {
	l.mu.Lock()
	l.results = append(l.results, result{success, message})
	l.mu.Unlock()
}

func (l *recordingListener) Results() []result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]result(nil), l.results...)
}

// button builds a labelled element with a 100x100 box at (x, y).
func button(label string, clickable bool, x, y int) *uitree.Node {
	return &uitree.Node{
		Text:      label,
		Package:   testPackage,
		Clickable: clickable,
		Enabled:   true,
		Bounds:    uitree.Rect{Left: x, Top: y, Right: x + 100, Bottom: y + 100},
	}
}

func screen(children ...*uitree.Node) *uitree.Tree {
	return uitree.New(&uitree.Node{
		Package:  testPackage,
		Bounds:   uitree.Rect{Right: 1080, Bottom: 2340},
		Children: children,
	})
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline: %s", msg)
}

var errTestDump = errors.New("dump failed")
