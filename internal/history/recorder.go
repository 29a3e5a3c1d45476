/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history persists terminal punch results.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/autopunch/internal/automation"
	"github.com/friendsincode/autopunch/internal/models"
)

// DefaultLimit is used when a query asks for a non-positive number of rows.
const DefaultLimit = 20

// Recorder is a session listener that stores one PunchRecord per result.
type Recorder struct {
	db     *gorm.DB
	now    func() time.Time
	logger zerolog.Logger
}

// NewRecorder creates a recorder writing to db.
func NewRecorder(db *gorm.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{
		db:     db,
		now:    time.Now,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// OnPunchResult stores a result that carries no session details.
func (r *Recorder) OnPunchResult(success bool, message string) {
	r.OnSessionResult(automation.Result{Success: success, Message: message})
}

// OnSessionResult stores the full session result. Storage failures are
// logged; they never reach the engine.
func (r *Recorder) OnSessionResult(res automation.Result) {
	rec := models.PunchRecord{
		ID:         uuid.NewString(),
		SessionID:  res.SessionID,
		PackageID:  res.PackageID,
		Success:    res.Success,
		Message:    res.Message,
		StartedAt:  res.StartedAt,
		RecordedAt: res.FinishedAt,
	}
	if res.State != automation.StateIdle {
		rec.FinalState = res.State.String()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = r.now()
	}

	if err := r.db.Create(&rec).Error; err != nil {
		r.logger.Error().Err(err).Str("session_id", res.SessionID).Msg("store punch record failed")
		return
	}
	r.logger.Debug().Str("id", rec.ID).Str("session_id", rec.SessionID).Bool("success", rec.Success).Msg("punch record stored")
}

// Recent returns up to limit records, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.PunchRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var out []models.PunchRecord
	err := r.db.WithContext(ctx).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query punch records: %w", err)
	}
	return out, nil
}

// Summary aggregates records since a point in time.
type Summary struct {
	Total       int64               `json:"total"`
	Succeeded   int64               `json:"succeeded"`
	Failed      int64               `json:"failed"`
	LastSuccess *models.PunchRecord `json:"last_success,omitempty"`
}

// Summarize counts results recorded at or after since.
func (r *Recorder) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	var s Summary
	q := r.db.WithContext(ctx).Model(&models.PunchRecord{}).Where("recorded_at >= ?", since)
	if err := q.Count(&s.Total).Error; err != nil {
		return s, fmt.Errorf("count punch records: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.PunchRecord{}).
		Where("recorded_at >= ? AND success = ?", since, true).
		Count(&s.Succeeded).Error; err != nil {
		return s, fmt.Errorf("count successful punch records: %w", err)
	}
	s.Failed = s.Total - s.Succeeded

	var last models.PunchRecord
	err := r.db.WithContext(ctx).
		Where("success = ?", true).
		Order("recorded_at DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return s, fmt.Errorf("query last success: %w", err)
	}
	if last.ID != "" {
		s.LastSuccess = &last
	}
	return s, nil
}
