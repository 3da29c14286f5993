// Package stream implements the StreamEngine: the component that fuses a
// session's replay prefix, a synthesized connect event, live queue
// delivery, and periodic heartbeats into one event sequence for an SSE or
// WebSocket consumer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/event"
	"github.com/codeready-toolchain/streamweaver/pkg/filter"
	"github.com/codeready-toolchain/streamweaver/pkg/metrics"
	"github.com/codeready-toolchain/streamweaver/pkg/queue"
	"github.com/codeready-toolchain/streamweaver/pkg/replay"
	"github.com/codeready-toolchain/streamweaver/pkg/session"
)

// pollInterval bounds how long a single Queue.Get call waits before the
// engine re-checks whether its parent context has been canceled. It is
// not a heartbeat — the heartbeat ticker below is independent.
const pollInterval = 15 * time.Second

// Engine generates SSE streams for sessions, backed by a bounded queue per
// session, an optional replay buffer, and an optional heartbeat ticker.
type Engine struct {
	sessions session.Store
	metrics  *metrics.Metrics

	queueCfg     *config.QueueConfig
	heartbeatCfg *config.HeartbeatConfig
	replayCfg    *config.ReplayConfig

	mu           sync.RWMutex
	queues       map[string]*queue.Queue
	streamCancel map[string]context.CancelFunc

	callbacksMu sync.RWMutex
	callbacks   map[string]func(*event.Event)

	replayBuffers *replay.SessionBuffers
}

// New builds a stream engine. cfg supplies the queue/heartbeat/replay
// sections; store is consulted for activity bookkeeping after a publish.
func New(cfg *config.Config, store session.Store, m *metrics.Metrics) *Engine {
	return &Engine{
		sessions:      store,
		metrics:       m,
		queueCfg:      cfg.Queue,
		heartbeatCfg:  cfg.Heartbeat,
		replayCfg:     cfg.Replay,
		queues:        make(map[string]*queue.Queue),
		streamCancel:  make(map[string]context.CancelFunc),
		callbacks:     make(map[string]func(*event.Event)),
		replayBuffers: replay.NewSessionBuffers(cfg.Replay.BufferSize),
	}
}

// RegisterEventCallback registers (or, with a nil cb, clears) a callback
// invoked synchronously whenever an event is published for sessionID.
// Used by a supervising service to mirror events into durable storage
// without coupling the engine to any particular persistence layer.
func (e *Engine) RegisterEventCallback(sessionID string, cb func(*event.Event)) {
	e.callbacksMu.Lock()
	defer e.callbacksMu.Unlock()
	if cb == nil {
		delete(e.callbacks, sessionID)
		return
	}
	e.callbacks[sessionID] = cb
}

func (e *Engine) callbackFor(sessionID string) func(*event.Event) {
	e.callbacksMu.RLock()
	defer e.callbacksMu.RUnlock()
	return e.callbacks[sessionID]
}

func (e *Engine) queueFor(sessionID string) *queue.Queue {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.queues[sessionID]
	if !ok {
		q = queue.New(e.queueCfg.Size, e.queueCfg.Policy)
		e.queues[sessionID] = q
	}
	return q
}

// EnsureQueue pre-creates a session's queue before its first event arrives,
// so an early publish never races a late subscriber's queue creation.
func (e *Engine) EnsureQueue(sessionID string) {
	e.queueFor(sessionID)
}

// PublishEvent records ev in the replay buffer (if enabled), invokes any
// registered callback, and enqueues it for live delivery. It returns
// false, without error, if the event was dropped due to backpressure.
func (e *Engine) PublishEvent(ctx context.Context, sessionID string, ev *event.Event) (bool, error) {
	if e.replayCfg.Enabled {
		e.replayBuffers.Add(sessionID, ev)
	}

	if cb := e.callbackFor(sessionID); cb != nil {
		cb(ev)
	}

	q := e.queueFor(sessionID)
	queued, err := q.Put(ctx, ev)
	if err != nil {
		return false, fmt.Errorf("publish event: %w", err)
	}

	if e.metrics != nil {
		if queued {
			e.metrics.RecordEventPublished(sessionID, string(ev.Type))
		} else {
			e.metrics.RecordEventDropped(sessionID, "backpressure")
		}
		e.metrics.UpdateQueueDepth(sessionID, q.Size())
	}

	if queued {
		if err := e.sessions.UpdateActivity(ctx, sessionID, time.Now(), ev.Message); err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Warn("failed to update session activity", "session_id", sessionID, "error", err)
		}
	} else {
		slog.Warn("event dropped due to backpressure", "session_id", sessionID, "event_type", ev.Type)
	}

	return queued, nil
}

// Stream drives a session's event sequence, calling emit for every SSE
// frame until the workflow completes, ctx is canceled (client disconnect
// or an explicit Cancel), or a supersede via CleanupQueue delivers its
// workflow_interruption sentinel. lastEventID, when non-empty, triggers a
// replay of buffered events before live delivery begins; otherwise a
// synthesized "connected" event is emitted first.
func (e *Engine) Stream(ctx context.Context, sessionID, lastEventID string, f filter.Filter, emit func(sse string) error) error {
	if lastEventID != "" {
		events := e.replayBuffers.EventsAfter(sessionID, lastEventID)
		for _, ev := range events {
			if f != nil && !f.Decide(ev) {
				continue
			}
			sse, err := ev.ToSSE()
			if err != nil {
				return err
			}
			if err := emit(sse); err != nil {
				return err
			}
		}
		if e.metrics != nil {
			e.metrics.RecordReplay(true, len(events))
		}
		slog.Info("replayed events", "session_id", sessionID, "count", len(events))
	}

	q := e.queueFor(sessionID)

	streamCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.streamCancel[sessionID] = cancel
	e.mu.Unlock()

	var heartbeatWG sync.WaitGroup
	heartbeatDone := make(chan struct{})
	if e.heartbeatCfg.Enabled {
		heartbeatWG.Add(1)
		go e.runHeartbeat(streamCtx, &heartbeatWG, heartbeatDone, sessionID, q)
	}

	defer func() {
		close(heartbeatDone)
		heartbeatWG.Wait()

		e.mu.Lock()
		if e.streamCancel[sessionID] != nil {
			delete(e.streamCancel, sessionID)
		}
		if e.queues[sessionID] == q {
			delete(e.queues, sessionID)
		}
		e.mu.Unlock()
		cancel()
		slog.Debug("stream closed", "session_id", sessionID)
	}()

	if lastEventID == "" {
		initial := event.New(event.TypeWorkflowStarted, sessionID, nowSeconds())
		initial.Message = "Connected to stream"
		if f == nil || f.Decide(initial) {
			sse, err := initial.ToSSE()
			if err != nil {
				return err
			}
			if err := emit(sse); err != nil {
				return err
			}
		}
		slog.Info("stream started", "session_id", sessionID)
	}

	for {
		getCtx, getCancel := context.WithTimeout(streamCtx, pollInterval)
		ev, err := q.Get(getCtx)
		getCancel()

		if err != nil {
			if streamCtx.Err() != nil {
				return streamCtx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return fmt.Errorf("stream %s: %w", sessionID, err)
		}

		if f == nil || f.Decide(ev) {
			sse, err := ev.ToSSE()
			if err != nil {
				return err
			}
			if err := emit(sse); err != nil {
				return err
			}
		}

		switch ev.Type {
		case event.TypeWorkflowCompleted:
			slog.Info("workflow completed", "session_id", sessionID)
			return nil
		case event.TypeWorkflowInterruption:
			slog.Info("stream superseded", "session_id", sessionID)
			return nil
		}
	}
}

func (e *Engine) runHeartbeat(ctx context.Context, wg *sync.WaitGroup, done <-chan struct{}, sessionID string, q *queue.Queue) {
	defer wg.Done()

	ticker := time.NewTicker(e.heartbeatCfg.Interval)
	defer ticker.Stop()

	sequence := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if q.Size() > 5 {
				continue
			}
			sequence++
			hb := event.New(event.TypeHeartbeat, sessionID, nowSeconds())
			hb.Message = "Heartbeat"
			hb.Visibility = event.VisibilityInternal
			hb.Data = map[string]any{"sequence": sequence}
			if _, err := q.Put(ctx, hb); err != nil {
				slog.Debug("heartbeat dropped", "session_id", sessionID, "error", err)
			}
		}
	}
}

// CancelStream cancels the active Stream call for sessionID, if any. Its
// emit loop unwinds on the next Queue.Get wakeup.
func (e *Engine) CancelStream(sessionID string) {
	e.mu.Lock()
	cancel := e.streamCancel[sessionID]
	delete(e.streamCancel, sessionID)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// CleanupQueue supersedes a session's queue: it injects a
// workflow_interruption sentinel so any consumer blocked in Queue.Get
// wakes with a terminal event instead of hanging, then drops the queue
// and clears the session's replay buffer.
func (e *Engine) CleanupQueue(sessionID string) {
	e.mu.Lock()
	q, ok := e.queues[sessionID]
	delete(e.queues, sessionID)
	e.mu.Unlock()

	if ok {
		stale := event.New(event.TypeWorkflowInterruption, sessionID, nowSeconds())
		stale.Message = "Stream has been superseded by a new connection"
		stale.Success = false
		_, _ = q.Put(context.Background(), stale)
	}

	e.replayBuffers.ClearSession(sessionID)
}

// ReplayEvents returns the buffered events after lastEventID for a session.
func (e *Engine) ReplayEvents(sessionID, lastEventID string) []*event.Event {
	return e.replayBuffers.EventsAfter(sessionID, lastEventID)
}

// Stats summarizes a session's queue for status/debug endpoints.
type Stats struct {
	Exists  bool
	Size    int
	MaxSize int
	Dropped int64
	Full    bool
}

// QueueStats reports the current queue state for a session.
func (e *Engine) QueueStats(sessionID string) Stats {
	e.mu.RLock()
	q, ok := e.queues[sessionID]
	e.mu.RUnlock()

	if !ok {
		return Stats{Exists: false, MaxSize: e.queueCfg.Size}
	}
	return Stats{
		Exists:  true,
		Size:    q.Size(),
		MaxSize: e.queueCfg.Size,
		Dropped: q.DroppedCount(),
		Full:    q.Full(),
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
