/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("punch session already running")

	// ErrLaunchFailed means the target identity could not be resolved or launched.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrElementNotFound means retries were exhausted at the punch step.
	ErrElementNotFound = errors.New("element not found")

	// ErrSessionTimeout means the session hit its time ceiling.
	ErrSessionTimeout = errors.New("timeout")
)

// Result messages reported for successful sessions.
const (
	MessagePunched        = "punched"
	MessageAlreadyPunched = "already punched"
)
