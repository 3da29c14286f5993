// Package batch coalesces bursts of events into fewer SSE frames, trading
// a small amount of latency for fewer writes on high-frequency streams.
package batch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

// Batcher buffers events for one session and flushes them as a single SSE
// frame once MaxSize events have accumulated, MaxDelay has elapsed since
// the first buffered event, or an immediate-type event arrives.
//
// A single re-armable timer backs the delay: only one flush timer is ever
// outstanding per batcher, started on the first buffered event and
// disarmed on every flush.
type Batcher struct {
	mu      sync.Mutex
	cfg     *config.BatchConfig
	pending []*event.Event
	timer   *time.Timer
	onReady func(sse string)
	closed  bool

	immediate map[event.Type]bool
}

// New creates a batcher. onReady is called (from the timer's own
// goroutine) whenever a delay-triggered flush produces a frame — callers
// driven by Add's return value don't need it, but a session's stream
// consumer does, since that flush isn't in response to any Add call.
func New(cfg *config.BatchConfig, onReady func(sse string)) *Batcher {
	immediate := make(map[event.Type]bool, len(cfg.ImmediateTypes))
	for _, t := range cfg.ImmediateTypes {
		immediate[event.Type(t)] = true
	}
	return &Batcher{
		cfg:       cfg,
		onReady:   onReady,
		immediate: immediate,
	}
}

// Add buffers ev and returns an SSE frame immediately if one was produced
// (batching disabled, the batch just filled, or ev is an immediate type —
// in which case any already-pending batch is flushed first and its frame
// is prepended to ev's own). An empty string with a nil error means ev
// was buffered and will be flushed later, either by a future Add or by
// the delay timer calling onReady.
func (b *Batcher) Add(ev *event.Event) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.cfg.Enabled {
		return ev.ToSSE()
	}

	if b.immediate[ev.Type] {
		flushed, err := b.flushLocked()
		if err != nil {
			return "", err
		}
		own, err := ev.ToSSE()
		if err != nil {
			return "", err
		}
		return flushed + own, nil
	}

	b.pending = append(b.pending, ev)
	if len(b.pending) >= b.cfg.MaxSize {
		return b.flushLocked()
	}
	b.armTimerLocked()
	return "", nil
}

// Flush forces out whatever is currently buffered, if anything.
func (b *Batcher) Flush() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

// Close stops the flush timer. Buffered events are discarded.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.stopTimerLocked()
	b.pending = nil
}

func (b *Batcher) armTimerLocked() {
	if b.timer != nil {
		return
	}
	b.timer = time.AfterFunc(b.cfg.MaxDelay, b.onTimerFire)
}

func (b *Batcher) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Batcher) onTimerFire() {
	b.mu.Lock()
	b.timer = nil
	if b.closed {
		b.mu.Unlock()
		return
	}
	sse, err := b.flushLocked()
	b.mu.Unlock()

	if err == nil && sse != "" && b.onReady != nil {
		b.onReady(sse)
	}
}

// flushLocked must be called with mu held.
func (b *Batcher) flushLocked() (string, error) {
	b.stopTimerLocked()
	if len(b.pending) == 0 {
		return "", nil
	}
	batch := b.pending
	b.pending = nil
	return formatBatch(batch)
}

func formatBatch(events []*event.Event) (string, error) {
	if len(events) == 1 {
		return events[0].ToSSE()
	}

	last := events[len(events)-1]

	data, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return "id: " + last.EventID + "\nevent: batch\ndata: " + string(data) + "\n\n", nil
}
