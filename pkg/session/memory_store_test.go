package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	defer s.Close()
	ctx := context.Background()

	data, err := s.Create(ctx, "s1", "u1", "do the thing", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "s1", data.ID)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// Idempotence — register_session called twice with the same id yields a
// session whose fields equal the second call.
func TestMemoryStore_CreateOverwritesExisting(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Create(ctx, "s1", "u1", "first request", nil)
	require.NoError(t, err)

	data, err := s.Create(ctx, "s1", "u2", "second request", nil)
	require.NoError(t, err)

	assert.Equal(t, "second request", data.Request)
	assert.Equal(t, "u2", data.UserID)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second request", got.Request)
}

func TestMemoryStore_GetUnknownReturnsNotFound(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	defer s.Close()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateActivityUnknownReturnsNotFound(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	defer s.Close()
	err := s.UpdateActivity(context.Background(), "missing", time.Now(), "step")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ActiveCount(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	defer s.Close()
	ctx := context.Background()

	_, _ = s.Create(ctx, "s1", "", "r", nil)
	_, _ = s.Create(ctx, "s2", "", "r", nil)

	count, err := s.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryStore_SweepEvictsExpiredSessions(t *testing.T) {
	s := NewMemoryStore(10*time.Millisecond, 10*time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Create(ctx, "s1", "", "r", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "s1")
		return err == ErrNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Hour, time.Hour)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
