/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/friendsincode/autopunch/internal/events"
	"github.com/friendsincode/autopunch/internal/telemetry"
)

// Sink delivers encoded envelopes to a broker.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Close() error
}

// ForwarderConfig tunes delivery and the circuit breaker.
type ForwarderConfig struct {
	NodeID      string
	SendTimeout time.Duration
	// MaxFailures consecutive send errors open the breaker for Cooldown.
	MaxFailures int
	Cooldown    time.Duration
}

// DefaultForwarderConfig returns production defaults.
func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		SendTimeout: 2 * time.Second,
		MaxFailures: 5,
		Cooldown:    30 * time.Second,
	}
}

// Forwarder copies every bus event to a sink. While the breaker is open
// events are dropped, never queued.
type Forwarder struct {
	bus    *events.Bus
	sink   Sink
	cfg    ForwarderConfig
	clock  clockwork.Clock
	logger zerolog.Logger

	mu        sync.Mutex
	failCount int
	openUntil time.Time
}

// NewForwarder creates a forwarder. Zero config fields take defaults.
func NewForwarder(bus *events.Bus, sink Sink, cfg ForwarderConfig, clock clockwork.Clock, logger zerolog.Logger) *Forwarder {
	def := DefaultForwarderConfig()
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.NodeID == "" {
		cfg.NodeID = NodeID()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Forwarder{
		bus:    bus,
		sink:   sink,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With().Str("component", "event_forwarder").Str("sink", sink.Name()).Logger(),
	}
}

type envelope struct {
	t       events.EventType
	payload events.Payload
}

// Run forwards events until ctx is cancelled, then unsubscribes and closes the sink.
func (f *Forwarder) Run(ctx context.Context) {
	merged := make(chan envelope, 16)
	var wg sync.WaitGroup
	subs := make(map[events.EventType]events.Subscriber, len(events.AllEventTypes))
	for _, t := range events.AllEventTypes {
		sub := f.bus.Subscribe(t)
		subs[t] = sub
		wg.Add(1)
		go func(t events.EventType, sub events.Subscriber) {
			defer wg.Done()
			for p := range sub {
				select {
				case merged <- envelope{t: t, payload: p}:
				case <-ctx.Done():
					return
				}
			}
		}(t, sub)
	}
	defer func() {
		for t, sub := range subs {
			f.bus.Unsubscribe(t, sub)
		}
		wg.Wait()
		if err := f.sink.Close(); err != nil {
			f.logger.Warn().Err(err).Msg("close sink failed")
		}
	}()

	f.logger.Info().Int("event_types", len(subs)).Msg("event forwarder started")
	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Msg("event forwarder stopped")
			return
		case e := <-merged:
			f.Forward(ctx, e.t, e.payload)
		}
	}
}

// Forward sends one event, honouring the circuit breaker.
func (f *Forwarder) Forward(ctx context.Context, t events.EventType, payload events.Payload) {
	now := f.clock.Now()
	if f.open(now) {
		telemetry.EventsForwardedTotal.WithLabelValues(f.sink.Name(), "dropped").Inc()
		return
	}

	msg := NewMessage(t, payload, f.cfg.NodeID, now)
	sendCtx, cancel := context.WithTimeout(ctx, f.cfg.SendTimeout)
	defer cancel()

	if err := f.sink.Send(sendCtx, msg); err != nil {
		telemetry.EventsForwardedTotal.WithLabelValues(f.sink.Name(), "error").Inc()
		f.failure(now, t, err)
		return
	}
	telemetry.EventsForwardedTotal.WithLabelValues(f.sink.Name(), "ok").Inc()

	f.mu.Lock()
	f.failCount = 0
	f.mu.Unlock()
	f.logger.Debug().Str("event_type", string(t)).Str("message_id", msg.MessageID).Msg("event forwarded")
}

func (f *Forwarder) open(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return now.Before(f.openUntil)
}

func (f *Forwarder) failure(now time.Time, t events.EventType, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failCount++
	f.logger.Error().Err(err).Str("event_type", string(t)).Int("fail_count", f.failCount).Msg("forward event failed")
	if f.failCount >= f.cfg.MaxFailures {
		f.openUntil = now.Add(f.cfg.Cooldown)
		f.failCount = 0
		f.logger.Warn().Time("until", f.openUntil).Msg("failure threshold reached, pausing forwarding")
	}
}
