/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package settings persists the schedule configuration as a YAML file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/friendsincode/autopunch/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrCustomPackageRequired is returned by Save for a custom target without a package id.
var ErrCustomPackageRequired = errors.New("custom target requires a package id")

type window struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type target struct {
	Kind      models.AppKind `yaml:"kind"`
	PackageID string         `yaml:"package_id,omitempty"`
}

// document is the on-disk layout.
type document struct {
	Enabled    bool     `yaml:"enabled"`
	Target     target   `yaml:"target"`
	Morning    window   `yaml:"morning"`
	Evening    window   `yaml:"evening"`
	CloseTimes []string `yaml:"close_times"`
	Weekdays   []int    `yaml:"weekdays"`
}

// FileStore reads the schedule from a YAML file on every call, so each
// scheduling decision sees the current file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// GetScheduleConfig returns the current configuration. A missing file yields
// the defaults; keys absent from the file keep their default values.
func (s *FileStore) GetScheduleConfig() (models.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := toDocument(models.DefaultScheduleConfig())
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fromDocument(doc)
	}
	if err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return models.ScheduleConfig{}, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return fromDocument(doc)
}

// Save writes cfg, replacing the file atomically.
func (s *FileStore) Save(cfg models.ScheduleConfig) error {
	if cfg.TargetApp.Kind == models.AppCustom && cfg.TargetApp.PackageID == "" {
		return ErrCustomPackageRequired
	}
	if cfg.TargetApp.Kind == models.AppCustom && !models.ValidPackageID(cfg.TargetApp.PackageID) {
		return fmt.Errorf("%w: %q", models.ErrInvalidPackageID, cfg.TargetApp.PackageID)
	}

	data, err := yaml.Marshal(toDocument(cfg))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".autopunch-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled flag and saves.
func (s *FileStore) SetEnabled(enabled bool) (models.ScheduleConfig, error) {
	cfg, err := s.GetScheduleConfig()
	if err != nil {
		return cfg, err
	}
	cfg.Enabled = enabled
	return cfg, s.Save(cfg)
}

func toDocument(cfg models.ScheduleConfig) document {
	doc := document{
		Enabled: cfg.Enabled,
		Target:  target{Kind: cfg.TargetApp.Kind},
		Morning: window{Start: cfg.MorningWindow.Start.String(), End: cfg.MorningWindow.End.String()},
		Evening: window{Start: cfg.EveningWindow.Start.String(), End: cfg.EveningWindow.End.String()},
	}
	if cfg.TargetApp.Kind == models.AppCustom {
		doc.Target.PackageID = cfg.TargetApp.PackageID
	}
	for _, t := range models.NormalizeCloseTimes(cfg.CloseTimes) {
		doc.CloseTimes = append(doc.CloseTimes, t.String())
	}
	for _, d := range cfg.SelectedWeekdays.Sorted() {
		doc.Weekdays = append(doc.Weekdays, int(d))
	}
	return doc
}

func fromDocument(doc document) (models.ScheduleConfig, error) {
	cfg := models.ScheduleConfig{Enabled: doc.Enabled}

	var err error
	if cfg.MorningWindow, err = parseWindow("morning", doc.Morning); err != nil {
		return models.ScheduleConfig{}, err
	}
	if cfg.EveningWindow, err = parseWindow("evening", doc.Evening); err != nil {
		return models.ScheduleConfig{}, err
	}

	var closeTimes []models.TimeOfDay
	for _, raw := range doc.CloseTimes {
		t, err := models.ParseTimeOfDay(raw)
		if err != nil {
			return models.ScheduleConfig{}, fmt.Errorf("close_times: %w", err)
		}
		closeTimes = append(closeTimes, t)
	}
	cfg.CloseTimes = models.NormalizeCloseTimes(closeTimes)

	days := make([]models.Weekday, 0, len(doc.Weekdays))
	for _, d := range doc.Weekdays {
		days = append(days, models.Weekday(d))
	}
	cfg.SelectedWeekdays = models.NewWeekdaySet(days...)

	switch doc.Target.Kind {
	case models.AppCustom:
		id := strings.TrimSpace(doc.Target.PackageID)
		if id != "" && !models.ValidPackageID(id) {
			return models.ScheduleConfig{}, fmt.Errorf("target.package_id: %w: %q", models.ErrInvalidPackageID, id)
		}
		cfg.TargetApp = models.CustomApp(id)
	case models.AppDingTalk:
		cfg.TargetApp = models.PresetApp(models.AppDingTalk)
	default:
		cfg.TargetApp = models.PresetApp(models.AppFeishu)
	}
	return cfg, nil
}

func parseWindow(name string, w window) (models.TimeRange, error) {
	start, err := models.ParseTimeOfDay(w.Start)
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("%s.start: %w", name, err)
	}
	end, err := models.ParseTimeOfDay(w.End)
	if err != nil {
		return models.TimeRange{}, fmt.Errorf("%s.end: %w", name, err)
	}
	return models.TimeRange{Start: start, End: end}, nil
}
