// Package replay implements the per-session ring buffer that lets a
// reconnecting client resume a stream from its last received event.
package replay

import (
	"sync"

	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

type entry struct {
	position int64
	event    *event.Event
}

// Buffer is a fixed-size ring buffer of recent events for one session.
// Positions are assigned from a counter that never resets — even across
// Clear — so an event ID from before a clear is reliably reported as "too
// old" rather than colliding with a later event that reused its slot.
type Buffer struct {
	mu           sync.Mutex
	entries      []entry
	index        map[string]int64 // event ID -> position
	nextPosition int64
	maxSize      int
}

// NewBuffer creates a buffer holding at most maxSize events.
func NewBuffer(maxSize int) *Buffer {
	return &Buffer{
		entries: make([]entry, 0, maxSize),
		index:   make(map[string]int64, maxSize),
		maxSize: maxSize,
	}
}

// Add appends ev, evicting the oldest entry if the buffer is at capacity.
func (b *Buffer) Add(ev *event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos := b.nextPosition
	b.nextPosition++

	if len(b.entries) >= b.maxSize {
		delete(b.index, b.entries[0].event.EventID)
		b.entries = b.entries[1:]
	}

	b.entries = append(b.entries, entry{position: pos, event: ev})
	b.index[ev.EventID] = pos
}

// EventsAfter returns every buffered event strictly after eventID, in
// order. An eventID that is unknown — too old to still be buffered, or
// simply invalid — yields an empty slice, not an error: the caller (the
// stream engine) treats "nothing to replay" and "can't replay" the same
// way, falling through to a live-only stream.
func (b *Buffer) EventsAfter(eventID string) []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.index[eventID]
	if !ok || len(b.entries) == 0 {
		return nil
	}

	idx := int(pos - b.entries[0].position)
	if idx < 0 || idx >= len(b.entries) {
		return nil
	}

	rest := b.entries[idx+1:]
	if len(rest) == 0 {
		return nil
	}

	out := make([]*event.Event, len(rest))
	for i, e := range rest {
		out[i] = e.event
	}
	return out
}

// LatestEventID returns the ID of the most recently added event, or "" if
// the buffer is empty.
func (b *Buffer) LatestEventID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return ""
	}
	return b.entries[len(b.entries)-1].event.EventID
}

// Clear empties the buffer. The position counter is left untouched so
// that event IDs seen before the clear are never mistaken for ones seen
// after it.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
	b.index = make(map[string]int64, b.maxSize)
}

// Len returns the number of events currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
