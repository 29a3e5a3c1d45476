/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package uitree models an immutable snapshot of the foreground UI and the
// label queries the automation runs against it.
package uitree

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidBounds indicates a bounds attribute that is not "[x1,y1][x2,y2]".
var ErrInvalidBounds = errors.New("invalid bounds")

var boundsPattern = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// Rect is an on-screen rectangle in pixels.
type Rect struct {
	Left, Top, Right, Bottom int
}

// ParseBounds parses the uiautomator bounds format "[x1,y1][x2,y2]".
func ParseBounds(s string) (Rect, error) {
	m := boundsPattern.FindStringSubmatch(s)
	if m == nil {
		return Rect{}, fmt.Errorf("%w: %q", ErrInvalidBounds, s)
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Rect{}, fmt.Errorf("%w: %q", ErrInvalidBounds, s)
		}
		v[i] = n
	}
	return Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}, nil
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (int, int) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// Width of the rectangle.
func (r Rect) Width() int { return r.Right - r.Left }

// Height of the rectangle.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Node is one element of a snapshot. Nodes are never mutated after the
// snapshot is built and must not be retained across snapshots.
type Node struct {
	Text        string
	ContentDesc string
	ResourceID  string
	Class       string
	Package     string
	Clickable   bool
	Enabled     bool
	Scrollable  bool
	Bounds      Rect

	Parent   *Node
	Children []*Node
}

// Ancestors returns the parent chain of n, nearest first.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// Label returns the text of the node, or its content description when the
// text is empty.
func (n *Node) Label() string {
	if n.Text != "" {
		return n.Text
	}
	return n.ContentDesc
}

// Tree is an immutable snapshot of the foreground window.
type Tree struct {
	Root *Node
}

// New builds a tree from root, linking parent pointers.
func New(root *Node) *Tree {
	if root != nil {
		link(root, nil)
	}
	return &Tree{Root: root}
}

func link(n, parent *Node) {
	n.Parent = parent
	for _, c := range n.Children {
		link(c, n)
	}
}

// Package returns the package of the root element.
func (t *Tree) Package() string {
	if t == nil || t.Root == nil {
		return ""
	}
	return t.Root.Package
}

// ScreenSize returns the size of the root element's bounds, or the fallback
// when the root carries no usable bounds.
func (t *Tree) ScreenSize(fallbackW, fallbackH int) (int, int) {
	if t == nil || t.Root == nil || t.Root.Bounds.Empty() {
		return fallbackW, fallbackH
	}
	return t.Root.Bounds.Right, t.Root.Bounds.Bottom
}

// Walk visits every node in document order until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t == nil || t.Root == nil {
		return
	}
	walk(t.Root, fn)
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	count := 0
	t.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}
