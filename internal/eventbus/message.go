/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards in-process events to external brokers so other
// machines can follow punch results and alarm activity.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/autopunch/internal/events"
)

// Message is the wire envelope published to every broker.
type Message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NewMessage wraps payload in an envelope with a fresh message id.
func NewMessage(eventType events.EventType, payload events.Payload, nodeID string, now time.Time) Message {
	return Message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: now.UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
}

// Encode renders m as JSON.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses an envelope.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("unmarshal event message: %w", err)
	}
	if m.EventType == "" {
		return Message{}, fmt.Errorf("event message without event_type")
	}
	return m, nil
}

// NodeID identifies this process in published envelopes.
func NodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "autopunch"
	}
	return host + "-" + uuid.NewString()[:8]
}
