/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package alarm

import (
	"errors"
	"strconv"

	"github.com/friendsincode/autopunch/internal/debounce"
	"github.com/friendsincode/autopunch/internal/events"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrDebounced is returned when a punch trigger arrives inside the cooldown
// of an earlier one.
var ErrDebounced = errors.New("punch trigger debounced")

// ErrSessionActive is returned when a punch trigger finds a session in progress.
var ErrSessionActive = errors.New("punch session active")

// ConfigStore supplies a fresh schedule snapshot per decision.
type ConfigStore interface {
	GetScheduleConfig() (models.ScheduleConfig, error)
}

// PunchStarter starts punch sessions.
type PunchStarter interface {
	Start(target models.AppIdentity) error
	Active() bool
}

// AppCloser runs the close flow.
type AppCloser interface {
	CloseApp(packageID string)
}

// Dispatcher handles alarm fires: it rearms the class, applies the weekday
// gate and invokes the punch or close action.
type Dispatcher struct {
	scheduler *Scheduler
	store     ConfigStore
	punch     PunchStarter
	closer    AppCloser
	guard     *debounce.Guard
	bus       events.Publisher
	logger    zerolog.Logger
}

// NewDispatcher wires a dispatcher. bus may be nil.
func NewDispatcher(scheduler *Scheduler, store ConfigStore, punch PunchStarter, closer AppCloser, guard *debounce.Guard, bus events.Publisher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		store:     store,
		punch:     punch,
		closer:    closer,
		guard:     guard,
		bus:       bus,
		logger:    logger.With().Str("component", "alarm_dispatcher").Logger(),
	}
}

// Fire handles a delivered alarm. The class is always rearmed; the weekday
// gate only decides whether the action runs today.
func (d *Dispatcher) Fire(id ClassID) {
	cfg := d.config()
	now := d.scheduler.now()

	next, armed := d.scheduler.Rearm(id, cfg)
	gated := !cfg.RunsOn(now)
	telemetry.AlarmFiresTotal.WithLabelValues(id.Kind(), strconv.FormatBool(gated)).Inc()

	evt := d.logger.Info().
		Str("class", string(id)).
		Str("weekday", models.WeekdayOf(now).String()).
		Bool("gated", gated)
	if armed {
		evt = evt.Time("next", next)
	}
	evt.Msg("alarm fired")

	d.publish(events.EventAlarmFired, events.Payload{
		"class": string(id),
		"gated": gated,
	})

	if gated {
		return
	}

	if _, isClose := id.CloseIndex(); isClose {
		d.Close(cfg)
		return
	}
	if err := d.Punch(cfg, string(id)); err != nil {
		d.logger.Info().Err(err).Str("class", string(id)).Msg("punch trigger dropped")
	}
}

// Punch starts a session for cfg's target unless a trigger was accepted within
// the cooldown or a session is already running.
func (d *Dispatcher) Punch(cfg models.ScheduleConfig, reason string) error {
	if d.guard != nil && !d.guard.TryAcquire() {
		d.suppressed(reason, "cooldown")
		return ErrDebounced
	}
	if d.punch.Active() {
		d.release()
		d.suppressed(reason, "active")
		return ErrSessionActive
	}

	d.publish(events.EventPunchRequested, events.Payload{
		"reason":  reason,
		"package": cfg.TargetApp.PackageID,
	})
	if err := d.punch.Start(cfg.TargetApp); err != nil {
		d.release()
		return err
	}
	return nil
}

// PunchNow triggers a punch with the current configuration.
func (d *Dispatcher) PunchNow(reason string) error {
	return d.Punch(d.config(), reason)
}

// Close runs the close flow for cfg's target.
func (d *Dispatcher) Close(cfg models.ScheduleConfig) {
	d.publish(events.EventCloseRequested, events.Payload{"package": cfg.TargetApp.PackageID})
	d.closer.CloseApp(cfg.TargetApp.PackageID)
}

// CloseNow runs the close flow with the current configuration.
func (d *Dispatcher) CloseNow() {
	d.Close(d.config())
}

// OnPunchResult releases the trigger guard when a session ends.
func (d *Dispatcher) OnPunchResult(success bool, message string) {
	d.release()
}

func (d *Dispatcher) config() models.ScheduleConfig {
	cfg, err := d.store.GetScheduleConfig()
	if err != nil {
		d.logger.Warn().Err(err).Msg("read schedule config failed, using last applied")
		return d.scheduler.Config()
	}
	return cfg
}

func (d *Dispatcher) release() {
	if d.guard != nil {
		d.guard.Release()
	}
}

func (d *Dispatcher) suppressed(reason, why string) {
	telemetry.TriggersDebouncedTotal.WithLabelValues(why).Inc()
	d.logger.Debug().Str("reason", reason).Str("why", why).Msg("punch trigger suppressed")
	d.publish(events.EventPunchSuppressed, events.Payload{"reason": reason, "why": why})
}

func (d *Dispatcher) publish(t events.EventType, p events.Payload) {
	if d.bus != nil {
		d.bus.Publish(t, p)
	}
}
