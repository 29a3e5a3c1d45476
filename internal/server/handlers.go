/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/autopunch/internal/alarm"
	"github.com/friendsincode/autopunch/internal/automation"
	"github.com/friendsincode/autopunch/internal/history"
	"github.com/friendsincode/autopunch/internal/logbuffer"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/version"
)

const maxListLimit = 500

type scheduleView struct {
	Enabled    bool     `json:"enabled"`
	Target     string   `json:"target"`
	PackageID  string   `json:"package_id"`
	Morning    string   `json:"morning"`
	Evening    string   `json:"evening"`
	CloseTimes []string `json:"close_times"`
	Weekdays   []string `json:"weekdays"`
}

type statusResponse struct {
	Now           time.Time           `json:"now"`
	Active        bool                `json:"active"`
	Session       *automation.Session `json:"session,omitempty"`
	Last          *automation.Result  `json:"last,omitempty"`
	Alarms        []alarm.Armed       `json:"alarms"`
	Schedule      *scheduleView       `json:"schedule,omitempty"`
	SettingsError string              `json:"settings_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"session_active": s.deps.Sessions.Status().Active,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Sessions.Status()
	resp := statusResponse{
		Now:     s.deps.Clock.Now(),
		Active:  st.Active,
		Session: st.Session,
		Last:    st.Last,
		Alarms:  []alarm.Armed{},
	}
	if s.deps.Alarms != nil {
		resp.Alarms = append(resp.Alarms, s.deps.Alarms.Armed()...)
	}
	if s.deps.Settings != nil {
		cfg, err := s.deps.Settings.GetScheduleConfig()
		if err != nil {
			resp.SettingsError = err.Error()
		} else {
			resp.Schedule = viewSchedule(cfg)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func viewSchedule(cfg models.ScheduleConfig) *scheduleView {
	v := &scheduleView{
		Enabled:    cfg.Enabled,
		Target:     cfg.TargetApp.DisplayName(),
		PackageID:  cfg.TargetApp.PackageID,
		Morning:    cfg.MorningWindow.String(),
		Evening:    cfg.EveningWindow.String(),
		CloseTimes: []string{},
		Weekdays:   []string{},
	}
	for _, t := range models.NormalizeCloseTimes(cfg.CloseTimes) {
		v.CloseTimes = append(v.CloseTimes, t.String())
	}
	for _, d := range cfg.SelectedWeekdays.Sorted() {
		v.Weekdays = append(v.Weekdays, d.String())
	}
	return v
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history_disabled")
		return
	}
	limit, err := parseLimit(r, history.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	records, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query history failed")
		writeError(w, http.StatusInternalServerError, "history_unavailable")
		return
	}
	if records == nil {
		records = []models.PunchRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history_disabled")
		return
	}
	since := s.deps.Clock.Now().AddDate(0, 0, -7)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		since = t
	}
	summary, err := s.deps.History.Summarize(r.Context(), since)
	if err != nil {
		s.logger.Error().Err(err).Msg("summarize history failed")
		writeError(w, http.StatusInternalServerError, "history_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Logs == nil {
		writeError(w, http.StatusNotFound, "logs_disabled")
		return
	}
	limit, err := parseLimit(r, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	q := r.URL.Query()
	entries := s.deps.Logs.Query(logbuffer.Query{
		Level:     q.Get("level"),
		Component: q.Get("component"),
		SessionID: q.Get("session_id"),
		Search:    q.Get("search"),
		Limit:     limit,
		Newest:    true,
	})
	if entries == nil {
		entries = []logbuffer.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handlePunch(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Triggers.PunchNow("api")
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, alarm.ErrDebounced):
		writeError(w, http.StatusTooManyRequests, "debounced")
	case errors.Is(err, alarm.ErrSessionActive), errors.Is(err, automation.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "session_active")
	default:
		s.logger.Error().Err(err).Msg("manual punch failed")
		writeError(w, http.StatusInternalServerError, "punch_failed")
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.deps.Triggers.CloseNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "closing"})
}

func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
