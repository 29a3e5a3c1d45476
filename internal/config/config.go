/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
// The punch schedule itself lives in the settings file.
type Config struct {
	Environment  string
	ADBPath      string
	DeviceSerial string
	SettingsFile string
	Timezone     string
	HTTPBind     string
	HTTPPort     int
	DBBackend    DatabaseBackend
	DBDSN        string

	// Event forwarding; empty address or URL disables the forwarder.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
	NATSURL       string
	NATSSubject   string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	WatchInterval   time.Duration
	TriggerCooldown time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:  getEnv("AUTOPUNCH_ENV", "development"),
		ADBPath:      getEnv("AUTOPUNCH_ADB_PATH", "adb"),
		DeviceSerial: getEnv("AUTOPUNCH_DEVICE_SERIAL", ""),
		SettingsFile: getEnv("AUTOPUNCH_SETTINGS_FILE", "autopunch.yaml"),
		Timezone:     getEnv("AUTOPUNCH_TIMEZONE", "Local"),
		HTTPBind:     getEnv("AUTOPUNCH_HTTP_BIND", "127.0.0.1"),
		HTTPPort:     getEnvInt("AUTOPUNCH_HTTP_PORT", 8765),
		DBBackend:    DatabaseBackend(getEnv("AUTOPUNCH_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:        getEnv("AUTOPUNCH_DB_DSN", "autopunch.db"),

		RedisAddr:     getEnv("AUTOPUNCH_REDIS_ADDR", ""),
		RedisPassword: getEnv("AUTOPUNCH_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("AUTOPUNCH_REDIS_DB", 0),
		RedisChannel:  getEnv("AUTOPUNCH_REDIS_CHANNEL", "autopunch.events"),
		NATSURL:       getEnv("AUTOPUNCH_NATS_URL", ""),
		NATSSubject:   getEnv("AUTOPUNCH_NATS_SUBJECT", "autopunch.events"),

		TracingEnabled:    getEnvBool("AUTOPUNCH_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("AUTOPUNCH_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("AUTOPUNCH_TRACING_SAMPLE_RATE", 1.0),

		WatchInterval:   getEnvDuration("AUTOPUNCH_WATCH_INTERVAL", 2*time.Second),
		TriggerCooldown: getEnvDuration("AUTOPUNCH_TRIGGER_COOLDOWN", time.Minute),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("AUTOPUNCH_DB_DSN must not be empty")
	}

	if cfg.WatchInterval <= 0 {
		return nil, fmt.Errorf("AUTOPUNCH_WATCH_INTERVAL must be positive, got %s", cfg.WatchInterval)
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("AUTOPUNCH_TRACING_SAMPLE_RATE must be within [0, 1], got %g", cfg.TracingSampleRate)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves the configured timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// HTTPAddr is the listen address of the status server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// Production reports whether the process runs in the production environment.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
