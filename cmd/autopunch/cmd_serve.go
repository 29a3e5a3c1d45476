/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/friendsincode/autopunch/internal/alarm"
	"github.com/friendsincode/autopunch/internal/db"
	"github.com/friendsincode/autopunch/internal/debounce"
	"github.com/friendsincode/autopunch/internal/eventbus"
	"github.com/friendsincode/autopunch/internal/events"
	"github.com/friendsincode/autopunch/internal/logbuffer"
	"github.com/friendsincode/autopunch/internal/server"
	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/friendsincode/autopunch/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the punch daemon",
	Long: `Run the punch daemon: arm the morning, evening and close alarms from the
settings file, punch through the device when they fire, and serve status
over HTTP.

Send SIGHUP after editing the settings file to re-arm the alarms.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logs := logbuffer.New(2000)
	if err := loadConfigWithLogs(logs); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Str("settings", cfg.SettingsFile).Msg("autopunch starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "autopunch",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, recorder, err := openHistory()
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("close database failed")
		}
	}()

	clock := clockwork.NewRealClock()
	stack := newDeviceStack(clock)
	defer stack.stop()

	schedule, err := stack.store.GetScheduleConfig()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	bus := events.NewBus()
	svc := alarm.NewClockService(clock, logger)
	defer svc.Stop()
	scheduler := alarm.NewScheduler(svc, clock, loc, logger)
	scheduler.SetPublisher(bus)

	guard := debounce.New(clock, cfg.TriggerCooldown)
	dispatcher := alarm.NewDispatcher(scheduler, stack.store, stack.engine, stack.closer, guard, bus, logger)
	svc.SetHandler(dispatcher.Fire)
	stack.listen(dispatcher, recorder, events.ResultListener{Publisher: bus})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	for _, f := range forwarders(ctx, bus, clock) {
		run(f.Run)
	}
	run(stack.watcher.Run)

	srv := server.New(cfg.HTTPAddr(), server.Deps{
		Sessions: stack.engine,
		Alarms:   svc,
		Triggers: dispatcher,
		Settings: stack.store,
		History:  recorder,
		Logs:     logs,
		Clock:    clock,
	}, logger)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	scheduler.Apply(schedule)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			reapply(stack, scheduler)
		case err := <-srvErr:
			stop()
			wg.Wait()
			if err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		case <-ctx.Done():
			logger.Info().Msg("shutting down gracefully...")
			wg.Wait()
			if err := <-srvErr; err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
			}
			logger.Info().Msg("autopunch stopped")
			return nil
		}
	}
}

// reapply re-reads the settings file and re-arms or cancels every alarm.
// A running session is never interrupted.
func reapply(stack *deviceStack, scheduler *alarm.Scheduler) {
	schedule, err := stack.store.GetScheduleConfig()
	if err != nil {
		logger.Error().Err(err).Msg("reload settings failed, keeping current alarms")
		return
	}
	logger.Info().Bool("enabled", schedule.Enabled).Msg("settings reloaded")
	scheduler.Apply(schedule)
}

// forwarders connects the configured brokers. A broker that cannot be
// reached is logged and skipped.
func forwarders(ctx context.Context, bus *events.Bus, clock clockwork.Clock) []*eventbus.Forwarder {
	var out []*eventbus.Forwarder
	fcfg := eventbus.DefaultForwarderConfig()
	fcfg.NodeID = eventbus.NodeID()

	if cfg.RedisAddr != "" {
		sink, err := eventbus.NewRedisSink(ctx, eventbus.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, events will not be forwarded there")
		} else {
			out = append(out, eventbus.NewForwarder(bus, sink, fcfg, clock, logger))
		}
	}

	if cfg.NATSURL != "" {
		ncfg := eventbus.DefaultNATSConfig()
		ncfg.URL = cfg.NATSURL
		ncfg.Subject = cfg.NATSSubject
		sink, err := eventbus.NewNATSSink(ncfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events will not be forwarded there")
		} else {
			out = append(out, eventbus.NewForwarder(bus, sink, fcfg, clock, logger))
		}
	}
	return out
}
