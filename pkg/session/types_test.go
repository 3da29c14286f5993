package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestData_TouchUpdatesLastActivityAndStep(t *testing.T) {
	d := New("s1", "do it", nil, "u1")
	before := d.LastActivity()

	time.Sleep(time.Millisecond)
	now := time.Now()
	d.Touch(now, "step two")

	assert.True(t, d.LastActivity().After(before))
	assert.Equal(t, "step two", d.Snapshot().CurrentStep)
}

func TestData_TouchWithEmptyMessageKeepsCurrentStep(t *testing.T) {
	d := New("s1", "do it", nil, "u1")
	d.Touch(time.Now(), "step one")
	d.Touch(time.Now(), "")
	assert.Equal(t, "step one", d.Snapshot().CurrentStep)
}

func TestData_SetStatus(t *testing.T) {
	d := New("s1", "do it", nil, "u1")
	assert.Equal(t, StatusActive, d.Snapshot().Status)
	d.SetStatus(StatusCompleted)
	assert.Equal(t, StatusCompleted, d.Snapshot().Status)
}

func TestData_IncrementSteps(t *testing.T) {
	d := New("s1", "do it", nil, "u1")
	d.IncrementSteps(1, 0)
	d.IncrementSteps(0, 1)
	snap := d.Snapshot()
	assert.Equal(t, 1, snap.TotalSteps)
	assert.Equal(t, 1, snap.CompletedSteps)
}
