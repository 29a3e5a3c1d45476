/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package uitree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrNoHierarchy indicates the dump did not contain a hierarchy document.
var ErrNoHierarchy = errors.New("no ui hierarchy in dump")

type xmlNode struct {
	Text        string    `xml:"text,attr"`
	ResourceID  string    `xml:"resource-id,attr"`
	Class       string    `xml:"class,attr"`
	Package     string    `xml:"package,attr"`
	ContentDesc string    `xml:"content-desc,attr"`
	Clickable   string    `xml:"clickable,attr"`
	Enabled     string    `xml:"enabled,attr"`
	Scrollable  string    `xml:"scrollable,attr"`
	Bounds      string    `xml:"bounds,attr"`
	Nodes       []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// ParseUIAutomator parses the output of `uiautomator dump`. Output noise
// before the XML prolog or after the closing tag is discarded.
func ParseUIAutomator(raw string) (*Tree, error) {
	start := strings.Index(raw, "<?xml")
	if start == -1 {
		start = strings.Index(raw, "<hierarchy")
	}
	if start == -1 {
		return nil, ErrNoHierarchy
	}
	raw = raw[start:]
	if end := strings.LastIndex(raw, ">"); end != -1 {
		raw = raw[:end+1]
	}

	var doc xmlHierarchy
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse ui hierarchy: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, ErrNoHierarchy
	}

	var root *Node
	if len(doc.Nodes) == 1 {
		root = convert(doc.Nodes[0])
	} else {
		root = &Node{Package: doc.Nodes[0].Package, Enabled: true}
		for _, n := range doc.Nodes {
			child := convert(n)
			root.Children = append(root.Children, child)
			root.Bounds = union(root.Bounds, child.Bounds)
		}
	}
	return New(root), nil
}

func convert(x xmlNode) *Node {
	n := &Node{
		Text:        x.Text,
		ContentDesc: x.ContentDesc,
		ResourceID:  x.ResourceID,
		Class:       x.Class,
		Package:     x.Package,
		Clickable:   x.Clickable == "true",
		Enabled:     x.Enabled != "false",
		Scrollable:  x.Scrollable == "true",
	}
	// Malformed bounds leave an empty rect; the node is still matchable.
	if r, err := ParseBounds(x.Bounds); err == nil {
		n.Bounds = r
	}
	for _, c := range x.Nodes {
		n.Children = append(n.Children, convert(c))
	}
	return n
}

func union(a, b Rect) Rect {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	return Rect{
		Left:   min(a.Left, b.Left),
		Top:    min(a.Top, b.Top),
		Right:  max(a.Right, b.Right),
		Bottom: max(a.Bottom, b.Bottom),
	}
}
