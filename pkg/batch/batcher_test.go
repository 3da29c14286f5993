package batch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/event"
)

// extractDataLine pulls the `data: ...` line out of a single SSE frame.
func extractDataLine(t *testing.T, frame string) string {
	t.Helper()
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, "data:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	t.Fatalf("no data line found in frame: %q", frame)
	return ""
}

func testConfig() *config.BatchConfig {
	return &config.BatchConfig{
		Enabled:        true,
		MaxSize:        10,
		MaxDelay:       50 * time.Millisecond,
		ImmediateTypes: []string{"workflow_completed", "error", "workflow_interruption"},
	}
}

// S5 — batching with immediate flush.
func TestBatcher_ImmediateTypeFlushesPendingThenAppends(t *testing.T) {
	b := New(testConfig(), nil)

	for i := 0; i < 3; i++ {
		out, err := b.Add(event.New(event.TypeStepProgress, "s1", float64(i)))
		require.NoError(t, err)
		assert.Empty(t, out)
	}

	out, err := b.Add(event.New(event.TypeWorkflowCompleted, "s1", 4))
	require.NoError(t, err)

	require.NotEmpty(t, out)
	assert.Contains(t, out, "event: batch")
	assert.Contains(t, out, "event: message")
	// The batch frame precedes the immediate event's own frame.
	assert.Less(t, strings.Index(out, "event: batch"), strings.Index(out, "event: message"))

	batchFrame := out[:strings.Index(out, "\n\n")+2]
	var payload []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractDataLine(t, batchFrame)), &payload))
	assert.Len(t, payload, 3, "data must be a bare JSON array of the batched events, not an envelope object")
}

func TestBatcher_FlushesAtMaxSize(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSize = 3
	b := New(cfg, nil)

	out1, err := b.Add(event.New(event.TypeStepProgress, "s1", 0))
	require.NoError(t, err)
	assert.Empty(t, out1)

	out2, err := b.Add(event.New(event.TypeStepProgress, "s1", 1))
	require.NoError(t, err)
	assert.Empty(t, out2)

	out3, err := b.Add(event.New(event.TypeStepProgress, "s1", 2))
	require.NoError(t, err)
	assert.NotEmpty(t, out3)
	assert.Contains(t, out3, "event: batch")

	var payload []map[string]any
	require.NoError(t, json.Unmarshal([]byte(extractDataLine(t, out3)), &payload))
	assert.Len(t, payload, 3)
}

func TestBatcher_TimerFlushesAfterDelay(t *testing.T) {
	ready := make(chan string, 1)
	cfg := testConfig()
	cfg.MaxDelay = 20 * time.Millisecond
	b := New(cfg, func(sse string) { ready <- sse })

	_, err := b.Add(event.New(event.TypeStepProgress, "s1", 0))
	require.NoError(t, err)

	select {
	case sse := <-ready:
		assert.Contains(t, sse, "event: message")
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestBatcher_DisabledIsImmediate(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	b := New(cfg, nil)

	out, err := b.Add(event.New(event.TypeStepProgress, "s1", 0))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestBatcher_CloseStopsTimer(t *testing.T) {
	ready := make(chan string, 1)
	b := New(testConfig(), func(sse string) { ready <- sse })

	_, err := b.Add(event.New(event.TypeStepProgress, "s1", 0))
	require.NoError(t, err)
	b.Close()

	select {
	case <-ready:
		t.Fatal("onReady fired after Close")
	case <-time.After(150 * time.Millisecond):
	}
}
