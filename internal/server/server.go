/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the punch daemon's status and manual triggers over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/autopunch/internal/alarm"
	"github.com/friendsincode/autopunch/internal/automation"
	"github.com/friendsincode/autopunch/internal/history"
	"github.com/friendsincode/autopunch/internal/logbuffer"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/telemetry"
)

// SessionSource reports the punch engine state.
type SessionSource interface {
	Status() automation.Status
}

// AlarmLister reports armed alarms.
type AlarmLister interface {
	Armed() []alarm.Armed
}

// Triggers runs manual actions.
type Triggers interface {
	PunchNow(reason string) error
	CloseNow()
}

// HistorySource queries stored results.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]models.PunchRecord, error)
	Summarize(ctx context.Context, since time.Time) (history.Summary, error)
}

// Deps are the collaborators behind the routes. History and Logs may be nil.
type Deps struct {
	Sessions SessionSource
	Alarms   AlarmLister
	Triggers Triggers
	Settings alarm.ConfigStore
	History  HistorySource
	Logs     *logbuffer.Buffer
	Clock    clockwork.Clock
}

// Server is the status HTTP server.
type Server struct {
	deps       Deps
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New builds the router and the underlying http.Server for addr.
func New(addr string, deps Deps, logger zerolog.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	s := &Server{
		deps:   deps,
		logger: logger.With().Str("component", "server").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(telemetry.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	s.router = router
	s.configureRoutes()

	traced := otelhttp.NewHandler(router, "autopunch.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      traced,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router without the tracing wrapper.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("status server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("status server stopped")
	return nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/version", s.handleVersion)
		r.Get("/history", s.handleHistory)
		r.Get("/history/summary", s.handleHistorySummary)
		r.Get("/logs", s.handleLogs)
		r.Post("/punch", s.handlePunch)
		r.Post("/close", s.handleClose)
	})
}
