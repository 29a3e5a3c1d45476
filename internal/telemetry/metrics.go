/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session metrics
var (
	// SessionsTotal counts finished punch sessions by outcome.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_sessions_total",
			Help: "Total number of punch sessions by outcome",
		},
		[]string{"outcome"},
	)

	// SessionDuration tracks time from start to terminal result.
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopunch_session_duration_seconds",
			Help:    "Punch session duration in seconds",
			Buckets: []float64{1, 5, 10, 15, 20, 30, 45, 60, 90},
		},
	)

	// StepTransitionsTotal counts state machine transitions.
	StepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_step_transitions_total",
			Help: "Total number of step transitions",
		},
		[]string{"from", "to"},
	)

	// StepRetriesTotal counts failed step evaluations.
	StepRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_step_retries_total",
			Help: "Total number of step retries by state",
		},
		[]string{"state"},
	)

	// GestureFailuresTotal counts gesture and launcher port failures.
	GestureFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_gesture_failures_total",
			Help: "Total number of failed gestures by kind",
		},
		[]string{"kind"},
	)

	// CloseFlowTotal counts close flow runs by the path taken.
	CloseFlowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_close_flow_total",
			Help: "Total number of close flow runs by path",
		},
		[]string{"path"},
	)
)

// Alarm metrics
var (
	// AlarmFiresTotal counts alarm deliveries and whether the weekday gate suppressed them.
	AlarmFiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_alarm_fires_total",
			Help: "Total number of alarm fires by class",
		},
		[]string{"class", "gated"},
	)

	// AlarmsArmed holds the armed instant of each alarm class as unix seconds, 0 when disarmed.
	AlarmsArmed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopunch_alarms_armed",
			Help: "Next fire instant per alarm class (unix seconds)",
		},
		[]string{"class"},
	)

	// TriggersDebouncedTotal counts triggers dropped by the debounce guard or an active session.
	TriggersDebouncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_triggers_debounced_total",
			Help: "Total number of punch triggers dropped",
		},
		[]string{"reason"},
	)
)

// Persistence and forwarding metrics
var (
	// DatabaseQueryDuration tracks gorm operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopunch_database_query_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_database_errors_total",
			Help: "Total number of database errors by operation",
		},
		[]string{"operation"},
	)

	// EventsForwardedTotal counts events handed to an external broker.
	EventsForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_events_forwarded_total",
			Help: "Total number of events forwarded by sink and result",
		},
		[]string{"sink", "result"},
	)
)

// HTTP metrics
var (
	// APIRequestDuration tracks status server request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopunch_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestsTotal counts status server requests.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopunch_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections tracks in-flight requests.
	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopunch_api_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
