/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"time"

	"github.com/friendsincode/autopunch/internal/automation"
)

// EventType enumerates event categories.
type EventType string

const (
	EventPunchResult     EventType = "punch.result"
	EventPunchRequested  EventType = "punch.requested"
	EventPunchSuppressed EventType = "punch.suppressed"
	EventCloseRequested  EventType = "close.requested"
	EventAlarmFired      EventType = "alarm.fired"
	EventAlarmArmed      EventType = "alarm.armed"
	EventScheduleApplied EventType = "schedule.applied"
)

// AllEventTypes lists every event type, for forwarders that relay everything.
var AllEventTypes = []EventType{
	EventPunchResult,
	EventPunchRequested,
	EventPunchSuppressed,
	EventCloseRequested,
	EventAlarmFired,
	EventAlarmArmed,
	EventScheduleApplied,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is anything events can be published to.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}

// ResultListener publishes terminal punch results as EventPunchResult.
type ResultListener struct {
	Publisher Publisher
	Now       func() time.Time
}

// OnPunchResult publishes the result.
func (l ResultListener) OnPunchResult(success bool, message string) {
	if l.Publisher == nil {
		return
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	l.Publisher.Publish(EventPunchResult, Payload{
		"success":     success,
		"message":     message,
		"recorded_at": now().UTC().Format(time.RFC3339),
	})
}

// OnSessionResult publishes the result with its session details.
func (l ResultListener) OnSessionResult(r automation.Result) {
	if l.Publisher == nil {
		return
	}
	at := r.FinishedAt
	if at.IsZero() {
		at = time.Now()
		if l.Now != nil {
			at = l.Now()
		}
	}
	l.Publisher.Publish(EventPunchResult, Payload{
		"success":     r.Success,
		"message":     r.Message,
		"session_id":  r.SessionID,
		"package":     r.PackageID,
		"state":       r.State.String(),
		"recorded_at": at.UTC().Format(time.RFC3339),
	})
}
