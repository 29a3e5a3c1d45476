/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/friendsincode/autopunch/internal/automation"
	"github.com/friendsincode/autopunch/internal/db"
	"github.com/friendsincode/autopunch/internal/device"
	"github.com/friendsincode/autopunch/internal/history"
	"github.com/friendsincode/autopunch/internal/settings"
)

// deviceStack is the punch machinery around one adb device.
type deviceStack struct {
	clock     clockwork.Clock
	store     *settings.FileStore
	device    *device.Client
	listeners *automation.Listeners
	engine    *automation.Engine
	closer    *automation.CloseFlow
	watcher   *device.Watcher
}

func newDeviceStack(clock clockwork.Clock) *deviceStack {
	dev := device.New(device.Config{ADBPath: cfg.ADBPath, Serial: cfg.DeviceSerial}, logger)
	listeners := &automation.Listeners{}
	host := automation.Host{
		Tree:     dev,
		Gestures: dev,
		Launcher: dev,
		Waker:    dev,
		Listener: listeners,
	}
	engine := automation.NewEngine(host, clock, automation.DefaultTiming(), logger)
	return &deviceStack{
		clock:     clock,
		store:     settings.NewFileStore(cfg.SettingsFile),
		device:    dev,
		listeners: listeners,
		engine:    engine,
		closer:    automation.NewCloseFlow(host, clock, logger),
		watcher:   device.NewWatcher(dev, engine, clock, cfg.WatchInterval, logger),
	}
}

// listen adds result listeners. Call before the first session starts.
func (s *deviceStack) listen(ls ...automation.Listener) {
	*s.listeners = append(*s.listeners, ls...)
}

func (s *deviceStack) stop() {
	s.closer.Stop()
	s.engine.Stop()
}

// openHistory connects and migrates the database.
func openHistory() (*gorm.DB, *history.Recorder, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, history.NewRecorder(database, logger), nil
}

// waitUntil polls cond until it holds or ctx ends.
func waitUntil(ctx context.Context, interval time.Duration, cond func() bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
