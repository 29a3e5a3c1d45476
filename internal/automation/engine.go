/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/telemetry"
	"github.com/friendsincode/autopunch/internal/timers"
	"github.com/friendsincode/autopunch/internal/uitree"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyStep    = "step"
	keyUI      = "ui"
	keyTimeout = "timeout"
	keyHome    = "home"
)

// Session is one run of the punch workflow.
type Session struct {
	ID         string             `json:"id"`
	Target     models.AppIdentity `json:"target"`
	State      State              `json:"state"`
	RetryCount int                `json:"retry_count"`
	StartedAt  time.Time          `json:"started_at"`

	catalog Catalog
	ctx     context.Context
	span    trace.Span
}

// Result is the terminal outcome of a session.
type Result struct {
	SessionID  string    `json:"session_id"`
	PackageID  string    `json:"package_id"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	Active  bool     `json:"active"`
	Session *Session `json:"session,omitempty"`
	Last    *Result  `json:"last,omitempty"`
}

// Engine drives punch sessions. At most one session is active. State changes
// run under the engine lock; device calls run outside it under portMu, so
// evaluations never interleave and status reads never wait on the device.
type Engine struct {
	host     Host
	gestures *GestureDispatcher
	timers   *timers.Set
	clock    clockwork.Clock
	timing   Timing
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	portMu sync.Mutex

	mu      sync.Mutex
	session *Session
	last    *Result
	outbox  []Result
}

// NewEngine creates an idle engine. Zero Timing fields take production defaults.
func NewEngine(host Host, clock clockwork.Clock, timing Timing, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger = logger.With().Str("component", "step_engine").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		host:     host,
		gestures: NewGestureDispatcher(host.Gestures, logger),
		timers:   timers.NewSet(clock),
		clock:    clock,
		timing:   timing.withDefaults(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins a session for target. It returns ErrAlreadyRunning while a
// session is active. Launch problems do not return an error; they end the
// session with a "launch failed" result.
func (e *Engine) Start(target models.AppIdentity) error {
	s, err := e.begin(target)
	if s == nil || err != nil {
		return err
	}

	e.portMu.Lock()
	e.wake(s)
	err = e.launch(s)
	e.portMu.Unlock()

	e.mu.Lock()
	defer e.unlock()
	if e.session != s {
		return nil
	}
	if err != nil {
		e.logger.Error().Err(err).Str("session_id", s.ID).Str("package", target.PackageID).Msg("launch failed")
		telemetry.RecordError(s.span, err)
		e.finishLocked(s, false, ErrLaunchFailed.Error())
		return nil
	}

	// The launcher only confirms the intent existed; give the app time to come up.
	e.timers.After(keyStep, e.timing.LaunchSettle, func() {
		e.mu.Lock()
		if e.session != s {
			e.mu.Unlock()
			return
		}
		e.transitionLocked(s, StateFindingWorkTab)
		e.mu.Unlock()
		e.evaluate(s)
	})
	return nil
}

// begin registers a new session. It returns a nil session when the start
// ends right away, either rejected or finished without a target.
func (e *Engine) begin(target models.AppIdentity) (*Session, error) {
	e.mu.Lock()
	defer e.unlock()

	if cur := e.session; cur != nil {
		e.logger.Info().
			Str("session_id", cur.ID).
			Str("state", cur.State.String()).
			Msg("punch already in progress, ignoring start")
		return nil, ErrAlreadyRunning
	}

	s := &Session{
		ID:        uuid.NewString(),
		Target:    target,
		State:     StateLaunchingApp,
		StartedAt: e.clock.Now(),
		catalog:   CatalogFor(target.Kind),
	}
	s.ctx, s.span = telemetry.StartSpan(e.ctx, "automation", "automation/session")
	telemetry.AddSpanAttributes(s.span, map[string]any{
		"session.id":     s.ID,
		"target.package": target.PackageID,
		"target.kind":    string(target.Kind),
	})
	e.session = s

	e.logger.Info().
		Str("session_id", s.ID).
		Str("target", target.DisplayName()).
		Str("package", target.PackageID).
		Msg("punch session started")

	e.timers.After(keyTimeout, e.timing.SessionTimeout, func() {
		e.mu.Lock()
		defer e.unlock()
		if e.session != s {
			return
		}
		e.logger.Warn().Str("session_id", s.ID).Str("state", s.State.String()).Msg("punch session timed out")
		e.finishLocked(s, false, ErrSessionTimeout.Error())
	})

	if target.PackageID == "" {
		e.logger.Warn().Str("session_id", s.ID).Msg("no target package configured")
		e.finishLocked(s, false, ErrLaunchFailed.Error())
		return nil, nil
	}
	return s, nil
}

// OnUIChanged schedules a re-evaluation after the UI settles when pkg is the
// active session's target. Bursts of notifications collapse into one.
func (e *Engine) OnUIChanged(pkg string) {
	e.mu.Lock()
	defer e.unlock()

	s := e.session
	if s == nil || pkg != s.Target.PackageID || s.State == StateLaunchingApp {
		return
	}
	e.timers.After(keyUI, e.timing.UISettle, func() { e.evaluate(s) })
}

// Active reports whether a session is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Target returns the package of the active session, if any.
func (e *Engine) Target() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return "", false
	}
	return e.session.Target.PackageID, true
}

// Status returns a copy of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{Active: e.session != nil}
	if e.session != nil {
		cp := *e.session
		st.Session = &cp
	}
	if e.last != nil {
		cp := *e.last
		st.Last = &cp
	}
	return st
}

// Idle reports whether no session is active and no follow-up step, such as
// the return to the home screen, is pending or running.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	active := e.session != nil
	e.mu.Unlock()
	return !active && e.timers.Idle()
}

// Stop cancels pending timers and abandons any session without notifying
// listeners. It is meant for process shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timers.CancelAll()
	if s := e.session; s != nil {
		e.logger.Warn().Str("session_id", s.ID).Msg("abandoning punch session on shutdown")
		s.span.End()
		e.session = nil
	}
	e.cancel()
}

// unlock releases the engine lock and then delivers queued results, so
// listeners may call back into the engine.
func (e *Engine) unlock() {
	out := e.outbox
	e.outbox = nil
	e.mu.Unlock()

	if e.host.Listener == nil {
		return
	}
	for _, r := range out {
		deliver(e.host.Listener, r)
	}
}

func (e *Engine) portContext(s *Session) (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, e.timing.PortTimeout)
}

func (e *Engine) wake(s *Session) {
	if e.host.Waker == nil {
		return
	}
	ctx, cancel := e.portContext(s)
	defer cancel()
	if err := safeCall(func() error { return e.host.Waker.Wake(ctx, e.timing.WakeDuration) }); err != nil {
		e.logger.Debug().Err(err).Str("session_id", s.ID).Msg("screen wake failed")
	}
}

func (e *Engine) launch(s *Session) error {
	if e.host.Launcher == nil {
		return errors.New("no app launcher configured")
	}
	ctx, cancel := e.portContext(s)
	defer cancel()
	return safeCall(func() error { return e.host.Launcher.Launch(ctx, s.Target.PackageID) })
}

// stepOutcome is what one evaluation observed on the device.
type stepOutcome struct {
	snapshot bool
	clicked  bool
	done     bool
	label    string
}

// evaluate runs the current step of s against a fresh snapshot. The device
// is queried outside the engine lock and the outcome is applied only while s
// is still active and in the state that was evaluated.
func (e *Engine) evaluate(s *Session) {
	e.portMu.Lock()
	defer e.portMu.Unlock()

	e.mu.Lock()
	if e.session != s {
		e.mu.Unlock()
		return
	}
	state := s.State
	e.mu.Unlock()

	st, ok := steps[state]
	if !ok {
		return
	}
	ctx, cancel := e.portContext(s)
	defer cancel()
	out := e.runStep(ctx, st, s.catalog)

	e.mu.Lock()
	defer e.unlock()
	if e.session != s || s.State != state {
		e.logger.Debug().Str("session_id", s.ID).Str("state", state.String()).Msg("session moved on during evaluation")
		return
	}
	e.applyLocked(s, st, out)
}

func (e *Engine) runStep(ctx context.Context, st step, catalog Catalog) stepOutcome {
	tree := snapshot(ctx, e.host.Tree)
	if tree == nil {
		return stepOutcome{}
	}
	for _, m := range tree.FindCandidates(st.labels(catalog)) {
		if e.gestures.Click(ctx, m.Node) {
			return stepOutcome{snapshot: true, clicked: true, label: m.Label}
		}
	}
	if st.alreadyDone != nil {
		if label, found := tree.ContainsAny(st.alreadyDone(catalog)); found {
			return stepOutcome{snapshot: true, done: true, label: label}
		}
	}
	if st.scrollOnMiss {
		e.gestures.ScrollDown(ctx, tree)
	}
	return stepOutcome{snapshot: true}
}

func (e *Engine) applyLocked(s *Session, st step, out stepOutcome) {
	switch {
	case !out.snapshot:
		e.logger.Debug().Str("session_id", s.ID).Str("state", s.State.String()).Msg("no UI snapshot")
		e.retryLocked(s)
	case out.clicked:
		e.logger.Info().
			Str("session_id", s.ID).
			Str("state", s.State.String()).
			Str("label", out.label).
			Msg("clicked")
		e.transitionLocked(s, st.next)
		if st.next == StateDone {
			e.finishLocked(s, true, MessagePunched)
			return
		}
		e.timers.After(keyStep, e.timing.settleBefore(st.next), func() { e.evaluate(s) })
	case out.done:
		e.logger.Info().Str("session_id", s.ID).Str("label", out.label).Msg("already punched")
		e.finishLocked(s, true, MessageAlreadyPunched)
	default:
		e.retryLocked(s)
	}
}

// snapshot queries provider, treating errors and panics as no snapshot.
func snapshot(ctx context.Context, provider TreeProvider) *uitree.Tree {
	if provider == nil {
		return nil
	}
	var tree *uitree.Tree
	err := safeCall(func() error {
		var err error
		tree, err = provider.Snapshot(ctx)
		return err
	})
	if err != nil {
		return nil
	}
	return tree
}

// retryLocked applies the retry policy to the current step.
func (e *Engine) retryLocked(s *Session) {
	s.RetryCount++
	telemetry.StepRetriesTotal.WithLabelValues(s.State.String()).Inc()

	e.logger.Debug().
		Str("session_id", s.ID).
		Str("state", s.State.String()).
		Int("retry", s.RetryCount).
		Msg("step not satisfied")

	if s.RetryCount < e.timing.MaxRetries {
		e.timers.After(keyStep, e.timing.RetryDelay, func() { e.evaluate(s) })
		return
	}

	st := steps[s.State]
	if st.final {
		e.finishLocked(s, false, ErrElementNotFound.Error())
		return
	}

	e.logger.Info().
		Str("session_id", s.ID).
		Str("state", s.State.String()).
		Str("next", st.next.String()).
		Msg("retries exhausted, escalating")
	e.transitionLocked(s, st.next)
	e.timers.After(keyStep, e.timing.RetryDelay, func() { e.evaluate(s) })
}

func (e *Engine) transitionLocked(s *Session, to State) {
	telemetry.StepTransitionsTotal.WithLabelValues(s.State.String(), to.String()).Inc()
	e.logger.Debug().
		Str("session_id", s.ID).
		Str("from", s.State.String()).
		Str("to", to.String()).
		Msg("step transition")
	s.State = to
	s.RetryCount = 0
}

// finishLocked ends s, queues the listener notification and schedules the
// return to the home screen.
func (e *Engine) finishLocked(s *Session, success bool, message string) {
	e.timers.Cancel(keyStep)
	e.timers.Cancel(keyUI)
	e.timers.Cancel(keyTimeout)
	e.session = nil

	now := e.clock.Now()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	telemetry.SessionsTotal.WithLabelValues(outcome).Inc()
	telemetry.SessionDuration.Observe(now.Sub(s.StartedAt).Seconds())
	telemetry.AddSpanAttributes(s.span, map[string]any{
		"session.success": success,
		"session.message": message,
		"session.state":   s.State.String(),
	})
	if !success {
		telemetry.RecordError(s.span, errors.New(message))
	}
	s.span.End()

	r := Result{
		SessionID:  s.ID,
		PackageID:  s.Target.PackageID,
		Success:    success,
		Message:    message,
		State:      s.State,
		StartedAt:  s.StartedAt,
		FinishedAt: now,
	}
	e.last = &r
	e.outbox = append(e.outbox, r)

	evt := e.logger.Info()
	if !success {
		evt = e.logger.Warn()
	}
	evt.Str("session_id", s.ID).
		Bool("success", success).
		Str("message", message).
		Dur("elapsed", now.Sub(s.StartedAt)).
		Msg("punch session finished")

	e.timers.After(keyHome, e.timing.HomeGrace, func() {
		if e.host.Launcher == nil {
			return
		}
		ctx, cancel := context.WithTimeout(e.ctx, e.timing.PortTimeout)
		defer cancel()
		if err := safeCall(func() error { return e.host.Launcher.GoHome(ctx) }); err != nil {
			e.logger.Warn().Err(err).Msg("go home failed")
		}
	})
}
