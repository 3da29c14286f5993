// Package service wires session storage, the stream engine, and metrics
// together behind the single facade transports (HTTP, WebSocket) call
// into.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/event"
	"github.com/codeready-toolchain/streamweaver/pkg/filter"
	"github.com/codeready-toolchain/streamweaver/pkg/metrics"
	"github.com/codeready-toolchain/streamweaver/pkg/session"
	"github.com/codeready-toolchain/streamweaver/pkg/stream"
)

// Service is the application-facing entry point: everything a transport
// adapter needs to register sessions, publish events, and serve streams.
type Service struct {
	cfg      *config.Config
	sessions session.Store
	engine   *stream.Engine
	metrics  *metrics.Metrics
}

// New builds a Service over an already-constructed store, engine, and
// metrics sink.
func New(cfg *config.Config, store session.Store, engine *stream.Engine, m *metrics.Metrics) *Service {
	return &Service{cfg: cfg, sessions: store, engine: engine, metrics: m}
}

// RegisterSession creates session state and pre-creates its event queue
// so a publish racing the caller's first Stream call never finds a
// missing queue.
func (s *Service) RegisterSession(ctx context.Context, id, userID, request string, sessionCtx map[string]any) (*session.Data, error) {
	data, err := s.sessions.Create(ctx, id, userID, request, sessionCtx)
	if err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	s.engine.EnsureQueue(id)
	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}
	return data, nil
}

// GetSession looks up a session's state, translating a missing record to
// ErrSessionNotFound.
func (s *Service) GetSession(ctx context.Context, id string) (*session.Data, error) {
	data, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return data, nil
}

// CheckSessionExists is the guard a stream handler runs before opening a
// response, mirroring the 404 a missing session produces.
func (s *Service) CheckSessionExists(ctx context.Context, id string) error {
	_, err := s.GetSession(ctx, id)
	return err
}

// PublishOption mutates a freshly-constructed event before it is handed
// to the stream engine.
type PublishOption func(*event.Event)

func WithMessage(msg string) PublishOption     { return func(e *event.Event) { e.Message = msg } }
func WithData(data map[string]any) PublishOption { return func(e *event.Event) { e.Data = data } }
func WithStep(step int) PublishOption {
	return func(e *event.Event) { v := step; e.Step = &v }
}
func WithProgress(pct float64) PublishOption {
	return func(e *event.Event) { v := pct; e.Progress = &v }
}
func WithTool(tool string) PublishOption {
	return func(e *event.Event) { v := tool; e.Tool = &v }
}
func WithDuration(ms int) PublishOption {
	return func(e *event.Event) { v := ms; e.DurationMS = &v }
}
func WithSuccess(success bool) PublishOption { return func(e *event.Event) { e.Success = success } }
func WithVisibility(v event.Visibility) PublishOption {
	return func(e *event.Event) { e.Visibility = v }
}
func WithMetadata(meta map[string]any) PublishOption {
	return func(e *event.Event) { e.Metadata = meta }
}

// Publish constructs and publishes an event for a session, returning
// false (with no error) if it was dropped under backpressure.
func (s *Service) Publish(ctx context.Context, sessionID string, typ event.Type, opts ...PublishOption) (bool, error) {
	ev := event.New(typ, sessionID, nowSeconds())
	for _, opt := range opts {
		opt(ev)
	}

	var stopTimer func()
	if s.metrics != nil {
		stopTimer = s.metrics.MeasurePublishDuration(string(typ))
	}
	queued, err := s.engine.PublishEvent(ctx, sessionID, ev)
	if stopTimer != nil {
		stopTimer()
	}
	return queued, err
}

// RegisterEventCallback forwards to the stream engine — see its doc for
// semantics.
func (s *Service) RegisterEventCallback(sessionID string, cb func(*event.Event)) {
	s.engine.RegisterEventCallback(sessionID, cb)
}

// CheckCapacity returns ErrAtCapacity once the number of active sessions
// reaches the configured MaxConcurrentStreams.
func (s *Service) CheckCapacity(ctx context.Context) error {
	count, err := s.sessions.ActiveCount(ctx)
	if err != nil {
		return fmt.Errorf("check capacity: %w", err)
	}
	if count >= s.cfg.Session.MaxConcurrentStreams {
		return ErrAtCapacity
	}
	return nil
}

// Stream drives a session's SSE sequence through the stream engine,
// returning ErrSessionNotFound up front if the session doesn't exist.
func (s *Service) Stream(ctx context.Context, sessionID, lastEventID string, f filter.Filter, emit func(string) error) error {
	if err := s.CheckSessionExists(ctx, sessionID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordStreamConnected(lastEventID != "")
	}
	err := s.engine.Stream(ctx, sessionID, lastEventID, f, emit)
	if s.metrics != nil {
		reason := "completed"
		if err != nil {
			reason = "error"
		}
		s.metrics.RecordStreamDisconnected(reason)
	}
	return err
}

// CloseStream cancels any in-flight stream, marks the session completed,
// and removes it along with its queue and callback. It is idempotent:
// closing an already-closed (or never-registered) session returns
// (false, nil) rather than an error.
func (s *Service) CloseStream(ctx context.Context, sessionID, reason string) (bool, error) {
	s.engine.CancelStream(sessionID)

	if err := s.sessions.SetStatus(ctx, sessionID, session.StatusCompleted); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("close stream: %w", err)
	}

	s.engine.RegisterEventCallback(sessionID, nil)
	s.engine.CleanupQueue(sessionID)

	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return false, fmt.Errorf("close stream: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionClosed(reason)
	}
	return true, nil
}

// ReplayEvents forwards to the stream engine.
func (s *Service) ReplayEvents(sessionID, lastEventID string) []*event.Event {
	return s.engine.ReplayEvents(sessionID, lastEventID)
}

// QueueStats forwards to the stream engine.
func (s *Service) QueueStats(sessionID string) stream.Stats {
	return s.engine.QueueStats(sessionID)
}

// Shutdown releases the session store's resources (sweeper goroutine,
// connection pool).
func (s *Service) Shutdown() error {
	return s.sessions.Close()
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
