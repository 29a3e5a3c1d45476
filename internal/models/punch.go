/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// PunchRecord is a persisted terminal punch result.
type PunchRecord struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID  string    `gorm:"type:varchar(36);index" json:"session_id,omitempty"`
	PackageID  string    `gorm:"type:varchar(255)" json:"package_id,omitempty"`
	Success    bool      `gorm:"index" json:"success"`
	Message    string    `gorm:"type:varchar(255)" json:"message"`
	FinalState string    `gorm:"type:varchar(32)" json:"final_state,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	RecordedAt time.Time `gorm:"index" json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Duration is how long the session ran, or zero when the start is unknown.
func (r PunchRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.RecordedAt.Before(r.StartedAt) {
		return 0
	}
	return r.RecordedAt.Sub(r.StartedAt)
}
