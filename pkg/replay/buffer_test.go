package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

// S8 / invariant 8 — replay correctness.
func TestBuffer_EventsAfter(t *testing.T) {
	b := NewBuffer(10)
	events := make([]*event.Event, 5)
	for i := range events {
		events[i] = event.New(event.TypeStepProgress, "s1", float64(i))
		b.Add(events[i])
	}

	after := b.EventsAfter(events[2].EventID)
	assert.Len(t, after, 2)
	assert.Equal(t, events[3].EventID, after[0].EventID)
	assert.Equal(t, events[4].EventID, after[1].EventID)
}

func TestBuffer_EventsAfterUnknownID(t *testing.T) {
	b := NewBuffer(10)
	b.Add(event.New(event.TypeStepProgress, "s1", 0))
	assert.Empty(t, b.EventsAfter("not-a-real-id"))
}

func TestBuffer_EventsAfterLatest(t *testing.T) {
	b := NewBuffer(10)
	b.Add(event.New(event.TypeStepProgress, "s1", 0))
	last := event.New(event.TypeStepProgress, "s1", 1)
	b.Add(last)
	assert.Empty(t, b.EventsAfter(last.EventID))
}

// Invariant 3 — capacity C and N inserts retain min(N, C), in order, and
// evicted IDs are never mistaken for live ones after wraparound.
func TestBuffer_EvictsOldestOnOverflow(t *testing.T) {
	b := NewBuffer(3)
	var events []*event.Event
	for i := 0; i < 5; i++ {
		ev := event.New(event.TypeStepProgress, "s1", float64(i))
		events = append(events, ev)
		b.Add(ev)
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, events[4].EventID, b.LatestEventID())

	// The evicted id (events[0]) is no longer resolvable.
	assert.Empty(t, b.EventsAfter(events[0].EventID))

	after := b.EventsAfter(events[2].EventID)
	assert.Len(t, after, 2)
	assert.Equal(t, events[3].EventID, after[0].EventID)
	assert.Equal(t, events[4].EventID, after[1].EventID)
}

func TestBuffer_ClearPreservesPositionCounter(t *testing.T) {
	b := NewBuffer(10)
	stale := event.New(event.TypeStepProgress, "s1", 0)
	b.Add(stale)
	b.Clear()

	fresh := event.New(event.TypeStepProgress, "s1", 1)
	b.Add(fresh)

	// The stale ID must not collide with anything post-clear.
	assert.Empty(t, b.EventsAfter(stale.EventID))
	assert.Equal(t, 1, b.Len())
}

func TestSessionBuffers_IsolatedPerSession(t *testing.T) {
	sb := NewSessionBuffers(10)

	evA := event.New(event.TypeStepProgress, "a", 0)
	evB := event.New(event.TypeStepProgress, "b", 0)
	sb.Add("a", evA)
	sb.Add("b", evB)

	assert.Equal(t, evA.EventID, sb.LatestEventID("a"))
	assert.Equal(t, evB.EventID, sb.LatestEventID("b"))

	sb.ClearSession("a")
	assert.Equal(t, "", sb.LatestEventID("a"))
	assert.Equal(t, evB.EventID, sb.LatestEventID("b"))
}
