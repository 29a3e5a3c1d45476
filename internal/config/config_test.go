/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite || cfg.DBDSN != "autopunch.db" {
		t.Fatalf("unexpected database defaults: %s %q", cfg.DBBackend, cfg.DBDSN)
	}
	if cfg.HTTPAddr() != "127.0.0.1:8765" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr())
	}
	if cfg.WatchInterval != 2*time.Second || cfg.TriggerCooldown != time.Minute {
		t.Fatalf("unexpected intervals: watch=%s cooldown=%s", cfg.WatchInterval, cfg.TriggerCooldown)
	}
	if cfg.RedisAddr != "" || cfg.NATSURL != "" {
		t.Fatal("forwarders should be disabled by default")
	}
}

func TestLoadReadsEnvKeys(t *testing.T) {
	t.Setenv("AUTOPUNCH_ENV", "production")
	t.Setenv("AUTOPUNCH_DEVICE_SERIAL", "emulator-5554")
	t.Setenv("AUTOPUNCH_DB_BACKEND", "postgres")
	t.Setenv("AUTOPUNCH_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("AUTOPUNCH_REDIS_ADDR", "redis:6379")
	t.Setenv("AUTOPUNCH_TRACING_ENABLED", "yes")
	t.Setenv("AUTOPUNCH_WATCH_INTERVAL", "500ms")
	t.Setenv("AUTOPUNCH_TRIGGER_COOLDOWN", "90")
	t.Setenv("AUTOPUNCH_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Production() {
		t.Error("expected production environment")
	}
	if cfg.DeviceSerial != "emulator-5554" || cfg.DBBackend != DatabasePostgres || cfg.RedisAddr != "redis:6379" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
	if cfg.WatchInterval != 500*time.Millisecond {
		t.Errorf("watch interval = %s", cfg.WatchInterval)
	}
	if cfg.TriggerCooldown != 90*time.Second {
		t.Errorf("trigger cooldown = %s", cfg.TriggerCooldown)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("location = %v, %v", loc, err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend", "AUTOPUNCH_DB_BACKEND", "oracle"},
		{"watch interval", "AUTOPUNCH_WATCH_INTERVAL", "-1s"},
		{"sample rate", "AUTOPUNCH_TRACING_SAMPLE_RATE", "2"},
		{"timezone", "AUTOPUNCH_TIMEZONE", "Mars/Olympus_Mons"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
