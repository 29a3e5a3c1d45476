/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime indicates a malformed or out-of-range time of day.
var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t, nil
}

// MustTimeOfDay is ParseTimeOfDay for literals; it panics on error.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the instant of t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// TimeOfDayFromMinutes converts minutes since midnight back to a TimeOfDay.
func TimeOfDayFromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// TimeRange is a jitter window. A range whose end is not after its start
// collapses to the fixed point Start.
type TimeRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Degenerate reports whether the window collapses to Start.
func (r TimeRange) Degenerate() bool {
	return r.End.Minutes() <= r.Start.Minutes()
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Weekday uses calendar numbering: 1=Sunday ... 7=Saturday.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// WeekdayOf returns the calendar weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(int(t.Weekday()) + 1)
}

// Valid reports whether w is within 1..7.
func (w Weekday) Valid() bool {
	return w >= Sunday && w <= Saturday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return "Weekday(" + strconv.Itoa(int(w)) + ")"
	}
	return time.Weekday(w - 1).String()
}

// WeekdaySet is the set of weekdays on which scheduled actions run.
type WeekdaySet map[Weekday]struct{}

// NewWeekdaySet builds a set, dropping out-of-range values.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, d := range days {
		if d.Valid() {
			set[d] = struct{}{}
		}
	}
	return set
}

// Contains reports whether d is selected.
func (s WeekdaySet) Contains(d Weekday) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the selected days in ascending order.
func (s WeekdaySet) Sorted() []Weekday {
	days := make([]Weekday, 0, len(s))
	for d := range s {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// NormalizeCloseTimes removes duplicate hour:minute entries and sorts ascending.
// Invalid entries are dropped.
func NormalizeCloseTimes(times []TimeOfDay) []TimeOfDay {
	seen := make(map[int]struct{}, len(times))
	out := make([]TimeOfDay, 0, len(times))
	for _, t := range times {
		if !t.Valid() {
			continue
		}
		if _, dup := seen[t.Minutes()]; dup {
			continue
		}
		seen[t.Minutes()] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes() < out[j].Minutes() })
	return out
}

// ScheduleConfig is a read-only snapshot of the schedule settings.
type ScheduleConfig struct {
	MorningWindow    TimeRange
	EveningWindow    TimeRange
	CloseTimes       []TimeOfDay
	SelectedWeekdays WeekdaySet
	TargetApp        AppIdentity
	Enabled          bool
}

// DefaultScheduleConfig mirrors the out-of-the-box settings.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		MorningWindow: TimeRange{Start: TimeOfDay{8, 50}, End: TimeOfDay{9, 20}},
		EveningWindow: TimeRange{Start: TimeOfDay{18, 40}, End: TimeOfDay{19, 10}},
		CloseTimes: []TimeOfDay{
			{9, 30},
			{18, 20},
			{19, 20},
		},
		SelectedWeekdays: NewWeekdaySet(Monday, Tuesday, Wednesday, Thursday, Friday),
		TargetApp:        PresetApp(AppFeishu),
		Enabled:          false,
	}
}

// RunsOn reports whether scheduled actions should execute on t's weekday.
func (c ScheduleConfig) RunsOn(t time.Time) bool {
	return c.SelectedWeekdays.Contains(WeekdayOf(t))
}
