/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxCloseAlarms bounds the number of close slots.
const MaxCloseAlarms = 20

// ClassID is the stable identity of an alarm timer.
type ClassID string

const (
	Morning ClassID = "morning"
	Evening ClassID = "evening"
)

const closePrefix = "close_"

// Close returns the identity of close slot i.
func Close(i int) ClassID {
	return ClassID(fmt.Sprintf("%s%d", closePrefix, i))
}

// CloseIndex returns the slot of a close class.
func (c ClassID) CloseIndex() (int, bool) {
	rest, ok := strings.CutPrefix(string(c), closePrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || i >= MaxCloseAlarms {
		return 0, false
	}
	return i, true
}

// Kind groups close slots under one label for metrics.
func (c ClassID) Kind() string {
	if _, ok := c.CloseIndex(); ok {
		return "close"
	}
	return string(c)
}

// AllClasses lists every class the scheduler may arm.
func AllClasses() []ClassID {
	ids := make([]ClassID, 0, 2+MaxCloseAlarms)
	ids = append(ids, Morning, Evening)
	for i := 0; i < MaxCloseAlarms; i++ {
		ids = append(ids, Close(i))
	}
	return ids
}
