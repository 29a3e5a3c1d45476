/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"9:30", TimeOfDay{9, 30}, false},
		{"09:05", TimeOfDay{9, 5}, false},
		{" 18:20 ", TimeOfDay{18, 20}, false},
		{"0:00", TimeOfDay{0, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"noon", TimeOfDay{}, true},
		{"12", TimeOfDay{}, true},
		{"a:10", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTime) {
					t.Fatalf("ParseTimeOfDay(%q) err = %v, want ErrInvalidTime", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTimeRangeDegenerate(t *testing.T) {
	if (TimeRange{Start: TimeOfDay{8, 50}, End: TimeOfDay{9, 20}}).Degenerate() {
		t.Error("08:50-09:20 should not be degenerate")
	}
	if !(TimeRange{Start: TimeOfDay{9, 0}, End: TimeOfDay{9, 0}}).Degenerate() {
		t.Error("equal endpoints should be degenerate")
	}
	if !(TimeRange{Start: TimeOfDay{9, 0}, End: TimeOfDay{8, 0}}).Degenerate() {
		t.Error("end before start should be degenerate")
	}
}

func TestWeekdayOf(t *testing.T) {
	// 2026-10-14 is a Wednesday, 2026-10-17 a Saturday, 2026-10-18 a Sunday.
	cases := map[string]Weekday{
		"2026-10-14": Wednesday,
		"2026-10-17": Saturday,
		"2026-10-18": Sunday,
	}
	for date, want := range cases {
		day, _ := time.Parse("2006-01-02", date)
		if got := WeekdayOf(day); got != want {
			t.Errorf("WeekdayOf(%s) = %v, want %v", date, got, want)
		}
	}
}

func TestNewWeekdaySetDropsInvalid(t *testing.T) {
	set := NewWeekdaySet(0, Monday, 8, Friday, Monday)
	if len(set) != 2 {
		t.Fatalf("expected 2 days, got %v", set.Sorted())
	}
	if !set.Contains(Monday) || !set.Contains(Friday) {
		t.Errorf("unexpected set %v", set.Sorted())
	}
}

func TestNormalizeCloseTimes(t *testing.T) {
	in := []TimeOfDay{{19, 20}, {9, 30}, {18, 20}, {9, 30}, {25, 0}, {19, 20}}
	got := NormalizeCloseTimes(in)
	want := []TimeOfDay{{9, 30}, {18, 20}, {19, 20}}
	if len(got) != len(want) {
		t.Fatalf("NormalizeCloseTimes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDefaultScheduleConfigRunsOnWeekdays(t *testing.T) {
	cfg := DefaultScheduleConfig()
	wed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	sat := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	if !cfg.RunsOn(wed) {
		t.Error("expected default config to run on Wednesday")
	}
	if cfg.RunsOn(sat) {
		t.Error("expected default config to skip Saturday")
	}
	if cfg.TargetApp.PackageID != PackageFeishu {
		t.Errorf("default target = %q", cfg.TargetApp.PackageID)
	}
}
