/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package uitree

import "strings"

// Matches reports whether label occurs in the node's text or content
// description, ignoring case.
func Matches(n *Node, label string) bool {
	if label == "" {
		return false
	}
	needle := strings.ToLower(label)
	return strings.Contains(strings.ToLower(n.Text), needle) ||
		strings.Contains(strings.ToLower(n.ContentDesc), needle)
}

// FindByText returns every node matching label in document order.
func (t *Tree) FindByText(label string) []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if Matches(n, label) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Match is a node found for a particular candidate label.
type Match struct {
	Label string
	Node  *Node
}

// FindCandidates searches candidates in priority order and returns every node for
// each label, grouped label by label. Labels without hits are skipped.
func (t *Tree) FindCandidates(candidates []string) []Match {
	var out []Match
	for _, label := range candidates {
		for _, n := range t.FindByText(label) {
			out = append(out, Match{Label: label, Node: n})
		}
	}
	return out
}

// ContainsAny reports whether any candidate label is present.
func (t *Tree) ContainsAny(candidates []string) (string, bool) {
	for _, label := range candidates {
		if len(t.FindByText(label)) > 0 {
			return label, true
		}
	}
	return "", false
}
