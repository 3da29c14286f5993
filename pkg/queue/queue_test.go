package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

func mustEvent(typ event.Type) *event.Event {
	return event.New(typ, "s1", 0)
}

// S2 — DROP_OLDEST under burst.
func TestQueue_DropOldest(t *testing.T) {
	q := New(3, config.BackpressureDropOldest)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := q.Put(ctx, mustEvent(event.TypeStepProgress))
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Equal(t, int64(2), q.DroppedCount())
	assert.Equal(t, 3, q.Size())

	// The surviving three are the last three pushed — oldest two evicted.
	for i := 0; i < 3; i++ {
		ev, err := q.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, ev)
	}
	assert.True(t, q.Empty())
}

// S3 — DROP_NEWEST under burst.
func TestQueue_DropNewest(t *testing.T) {
	q := New(3, config.BackpressureDropNewest)
	ctx := context.Background()

	var accepted []bool
	for i := 0; i < 5; i++ {
		ok, err := q.Put(ctx, mustEvent(event.TypeStepProgress))
		require.NoError(t, err)
		accepted = append(accepted, ok)
	}

	assert.Equal(t, []bool{true, true, true, false, false}, accepted)
	assert.Equal(t, int64(2), q.DroppedCount())
	assert.Equal(t, 3, q.Size())
}

// Invariant 2 — size never exceeds max_size.
func TestQueue_NeverExceedsMaxSize(t *testing.T) {
	for _, policy := range []config.BackpressurePolicy{
		config.BackpressureDropOldest,
		config.BackpressureDropNewest,
	} {
		q := New(2, policy)
		ctx := context.Background()
		for i := 0; i < 10; i++ {
			_, err := q.Put(ctx, mustEvent(event.TypeStepProgress))
			require.NoError(t, err)
			assert.LessOrEqual(t, q.Size(), 2)
		}
	}
}

func TestQueue_FIFOOrderPreserved(t *testing.T) {
	q := New(10, config.BackpressureBlock)
	ctx := context.Background()

	first := event.New(event.TypeStepStarted, "s1", 1)
	second := event.New(event.TypeStepCompleted, "s1", 2)
	_, err := q.Put(ctx, first)
	require.NoError(t, err)
	_, err = q.Put(ctx, second)
	require.NoError(t, err)

	got1, err := q.Get(ctx)
	require.NoError(t, err)
	got2, err := q.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.EventID, got1.EventID)
	assert.Equal(t, second.EventID, got2.EventID)
}

// Open Question 3 — BLOCK + cancellation aborts the pending Put rather
// than leaving it pending.
func TestQueue_BlockPutAbortsOnCancel(t *testing.T) {
	q := New(1, config.BackpressureBlock)
	ctx := context.Background()

	_, err := q.Put(ctx, mustEvent(event.TypeStepProgress))
	require.NoError(t, err)

	putCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	ok, err := q.Put(putCtx, mustEvent(event.TypeStepProgress))
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q := New(10, config.BackpressureBlock)
	ctx := context.Background()
	done := make(chan *event.Event, 1)

	go func() {
		ev, err := q.Get(ctx)
		require.NoError(t, err)
		done <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	ev := mustEvent(event.TypeHeartbeat)
	_, err := q.Put(ctx, ev)
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, ev.EventID, got.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("Get never returned")
	}
}

func TestQueue_CloseWakesBlockedGet(t *testing.T) {
	q := New(10, config.BackpressureBlock)
	ctx := context.Background()
	errCh := make(chan error, 1)

	go func() {
		_, err := q.Get(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Get never woke on Close")
	}
}
