package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, BackpressureDropOldest, cfg.Queue.Policy)
	assert.Equal(t, 1000, cfg.Queue.Size)
	assert.True(t, cfg.Heartbeat.Enabled)
	assert.True(t, cfg.Replay.Enabled)
	assert.False(t, cfg.Batch.Enabled)
	assert.Contains(t, cfg.Batch.ImmediateTypes, "workflow_completed")
	assert.Contains(t, cfg.Batch.ImmediateTypes, "error")
	assert.Contains(t, cfg.Batch.ImmediateTypes, "workflow_interruption")
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Compression.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDefaultConfig_ReturnsFreshInstanceEachCall(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()

	a.Server.Port = 1
	assert.Equal(t, 8090, b.Server.Port)
}
