// Package queue implements a bounded, per-session event queue with
// configurable overflow behavior.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

// ErrClosed is returned by Put/Get once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO event queue bounded at maxSize. Once full, Put's
// behavior is governed by policy:
//
//   - Block: the caller waits (respecting ctx) until room frees up
//   - DropOldest: the head of the queue is evicted to make room
//   - DropNewest: the incoming event is discarded
//
// DropOldest/DropNewest both increment the dropped counter; Block does not,
// since nothing was actually lost.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	items   []*event.Event
	maxSize int
	policy  config.BackpressurePolicy
	dropped int64
	closed  bool
}

// New creates a bounded queue with the given capacity and overflow policy.
func New(maxSize int, policy config.BackpressurePolicy) *Queue {
	q := &Queue{
		items:   make([]*event.Event, 0, maxSize),
		maxSize: maxSize,
		policy:  policy,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put enqueues ev. It returns (true, nil) if the event was queued, (false,
// nil) if it was dropped under DropNewest, or (false, err) if ctx was
// canceled while waiting under Block, or the queue was closed.
func (q *Queue) Put(ctx context.Context, ev *event.Event) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrClosed
	}

	if len(q.items) >= q.maxSize {
		switch q.policy {
		case config.BackpressureDropNewest:
			q.dropped++
			return false, nil

		case config.BackpressureDropOldest:
			q.items = q.items[1:]
			q.dropped++

		default: // BackpressureBlock
			stop := context.AfterFunc(ctx, q.cond.Broadcast)
			defer stop()
			for len(q.items) >= q.maxSize && !q.closed {
				if err := ctx.Err(); err != nil {
					return false, err
				}
				q.cond.Wait()
			}
			if q.closed {
				return false, ErrClosed
			}
		}
	}

	q.items = append(q.items, ev)
	q.cond.Broadcast()
	return true, nil
}

// Get dequeues the oldest event, blocking until one is available, ctx is
// done, or the queue is closed while empty.
func (q *Queue) Get(ctx context.Context) (*event.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	for len(q.items) == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, ErrClosed
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.cond.Broadcast()
	return item, nil
}

// Size returns the current number of queued events.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Full reports whether the queue is at capacity.
func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.maxSize
}

// Empty reports whether the queue currently holds no events.
func (q *Queue) Empty() bool {
	return q.Size() == 0
}

// DroppedCount returns the number of events dropped due to backpressure
// since the last ResetDroppedCount.
func (q *Queue) DroppedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// ResetDroppedCount zeroes the dropped-event counter.
func (q *Queue) ResetDroppedCount() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped = 0
}

// Clear discards all queued events without closing the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	q.cond.Broadcast()
}

// Close marks the queue closed and wakes any blocked Put/Get callers.
// Events already queued remain available to Get until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
