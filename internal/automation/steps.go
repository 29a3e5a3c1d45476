/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"fmt"
	"time"
)

// State is a step of the punch workflow.
type State int

const (
	StateIdle State = iota
	StateLaunchingApp
	StateFindingWorkTab
	StateFindingAttendance
	StatePunching
	StateDone
)

var stateNames = map[State]string{
	StateIdle:              "Idle",
	StateLaunchingApp:      "LaunchingApp",
	StateFindingWorkTab:    "FindingWorkTab",
	StateFindingAttendance: "FindingAttendance",
	StatePunching:          "Punching",
	StateDone:              "Done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the state name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// step describes one actionable state: what to search for, where a click
// leads, and what to do when nothing matches.
type step struct {
	labels func(Catalog) []string
	next   State

	// alreadyDone labels end the session successfully when no action matched.
	alreadyDone func(Catalog) []string
	// scrollOnMiss scrolls the page before retrying.
	scrollOnMiss bool
	// final steps fail instead of escalating when retries run out.
	final bool
}

var steps = map[State]step{
	StateFindingWorkTab: {
		labels: func(c Catalog) []string { return c.WorkTab },
		next:   StateFindingAttendance,
	},
	StateFindingAttendance: {
		labels:       func(c Catalog) []string { return c.Attendance },
		next:         StatePunching,
		scrollOnMiss: true,
	},
	StatePunching: {
		labels:      func(c Catalog) []string { return c.PunchAction },
		next:        StateDone,
		alreadyDone: func(c Catalog) []string { return c.AlreadyDone },
		final:       true,
	},
}

// Timing holds the delays that pace a session.
type Timing struct {
	LaunchSettle     time.Duration
	WorkTabSettle    time.Duration
	AttendanceSettle time.Duration
	UISettle         time.Duration
	RetryDelay       time.Duration
	MaxRetries       int
	SessionTimeout   time.Duration
	HomeGrace        time.Duration
	WakeDuration     time.Duration
	PortTimeout      time.Duration
}

// DefaultTiming returns the production pacing.
func DefaultTiming() Timing {
	return Timing{
		LaunchSettle:     5 * time.Second,
		WorkTabSettle:    3 * time.Second,
		AttendanceSettle: 5 * time.Second,
		UISettle:         1500 * time.Millisecond,
		RetryDelay:       2 * time.Second,
		MaxRetries:       3,
		SessionTimeout:   60 * time.Second,
		HomeGrace:        2 * time.Second,
		WakeDuration:     30 * time.Second,
		PortTimeout:      15 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultTiming.
func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.LaunchSettle <= 0 {
		t.LaunchSettle = d.LaunchSettle
	}
	if t.WorkTabSettle <= 0 {
		t.WorkTabSettle = d.WorkTabSettle
	}
	if t.AttendanceSettle <= 0 {
		t.AttendanceSettle = d.AttendanceSettle
	}
	if t.UISettle <= 0 {
		t.UISettle = d.UISettle
	}
	if t.RetryDelay <= 0 {
		t.RetryDelay = d.RetryDelay
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = d.MaxRetries
	}
	if t.SessionTimeout <= 0 {
		t.SessionTimeout = d.SessionTimeout
	}
	if t.HomeGrace <= 0 {
		t.HomeGrace = d.HomeGrace
	}
	if t.WakeDuration <= 0 {
		t.WakeDuration = d.WakeDuration
	}
	if t.PortTimeout <= 0 {
		t.PortTimeout = d.PortTimeout
	}
	return t
}

// settleBefore is the wait between a successful click and evaluating state.
func (t Timing) settleBefore(state State) time.Duration {
	switch state {
	case StateFindingAttendance:
		return t.WorkTabSettle
	case StatePunching:
		return t.AttendanceSettle
	default:
		return t.LaunchSettle
	}
}
