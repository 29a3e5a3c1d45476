/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package uitree

import (
	"errors"
	"testing"
)

const sampleDump = `UI hierchary dumped to: /data/local/tmp/view.xml
<?xml version='1.0' encoding='UTF-8' standalone='yes' ?><hierarchy rotation="0"><node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.ss.android.lark" content-desc="" clickable="false" enabled="true" scrollable="false" bounds="[0,0][1080,2400]"><node index="0" text="" resource-id="tab_workplace" class="android.widget.LinearLayout" package="com.ss.android.lark" content-desc="" clickable="true" enabled="true" scrollable="false" bounds="[540,2200][810,2400]"><node index="0" text="工作台" resource-id="" class="android.widget.TextView" package="com.ss.android.lark" content-desc="" clickable="false" enabled="true" scrollable="false" bounds="[600,2300][750,2350]" /></node><node index="1" text="" resource-id="" class="android.widget.ImageView" package="com.ss.android.lark" content-desc="Workplace shortcut" clickable="false" enabled="true" scrollable="false" bounds="[10,10][110,110]" /></node></hierarchy>
`

func TestParseBounds(t *testing.T) {
	r, err := ParseBounds("[540,2200][810,2400]")
	if err != nil {
		t.Fatalf("ParseBounds: %v", err)
	}
	if r != (Rect{540, 2200, 810, 2400}) {
		t.Fatalf("unexpected rect %v", r)
	}
	x, y := r.Center()
	if x != 675 || y != 2300 {
		t.Errorf("Center() = (%d,%d), want (675,2300)", x, y)
	}
	if _, err := ParseBounds("540,2200,810,2400"); !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestParseUIAutomator(t *testing.T) {
	tree, err := ParseUIAutomator(sampleDump)
	if err != nil {
		t.Fatalf("ParseUIAutomator: %v", err)
	}
	if tree.Package() != "com.ss.android.lark" {
		t.Errorf("Package() = %q", tree.Package())
	}
	if tree.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tree.Len())
	}
	w, h := tree.ScreenSize(1, 1)
	if w != 1080 || h != 2400 {
		t.Errorf("ScreenSize() = %dx%d", w, h)
	}

	nodes := tree.FindByText("工作台")
	if len(nodes) != 1 {
		t.Fatalf("FindByText returned %d nodes", len(nodes))
	}
	label := nodes[0]
	if label.Clickable {
		t.Error("label should not be clickable")
	}
	if label.Parent == nil || !label.Parent.Clickable {
		t.Fatal("expected clickable parent link")
	}
	if label.Parent.ResourceID != "tab_workplace" {
		t.Errorf("parent resource id = %q", label.Parent.ResourceID)
	}
	if got := len(label.Ancestors()); got != 2 {
		t.Errorf("Ancestors() len = %d, want 2", got)
	}
}

func TestParseUIAutomatorRejectsGarbage(t *testing.T) {
	if _, err := ParseUIAutomator("ERROR: null root node returned by UiTestAutomationBridge."); !errors.Is(err, ErrNoHierarchy) {
		t.Errorf("expected ErrNoHierarchy, got %v", err)
	}
	if _, err := ParseUIAutomator(`<?xml version="1.0"?><hierarchy rotation="0"></hierarchy>`); !errors.Is(err, ErrNoHierarchy) {
		t.Errorf("expected ErrNoHierarchy for empty hierarchy, got %v", err)
	}
}

func TestFindByTextMatchesContentDescAndIgnoresCase(t *testing.T) {
	tree, err := ParseUIAutomator(sampleDump)
	if err != nil {
		t.Fatalf("ParseUIAutomator: %v", err)
	}
	nodes := tree.FindByText("workplace")
	if len(nodes) != 1 || nodes[0].ContentDesc != "Workplace shortcut" {
		t.Fatalf("expected content-desc match, got %d nodes", len(nodes))
	}
	if got := tree.FindByText("考勤"); len(got) != 0 {
		t.Errorf("expected no match, got %d", len(got))
	}
	if got := tree.FindByText(""); len(got) != 0 {
		t.Errorf("empty label must not match, got %d", len(got))
	}
}

func TestFindCandidatesKeepsPriorityOrder(t *testing.T) {
	root := &Node{Children: []*Node{
		{Text: "上班打卡", Clickable: true},
		{Text: "更新打卡", Clickable: true},
	}}
	tree := New(root)

	matches := tree.FindCandidates([]string{"更新打卡", "下班打卡", "上班打卡"})
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Label != "更新打卡" || matches[1].Label != "上班打卡" {
		t.Errorf("unexpected order: %q, %q", matches[0].Label, matches[1].Label)
	}

	if label, ok := tree.ContainsAny([]string{"已打卡", "上班"}); !ok || label != "上班" {
		t.Errorf("ContainsAny = %q, %v", label, ok)
	}
}

func TestNilTreeIsEmpty(t *testing.T) {
	var tree *Tree
	if got := tree.FindByText("x"); len(got) != 0 {
		t.Errorf("expected no nodes from nil tree")
	}
	w, h := tree.ScreenSize(1080, 2400)
	if w != 1080 || h != 2400 {
		t.Errorf("fallback size not used: %dx%d", w, h)
	}
}
