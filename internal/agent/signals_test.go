package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlTransitions(t *testing.T) {
	c := NewControl(time.Millisecond)
	assert.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Pause())
	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.State())

	require.NoError(t, c.Resume())
	assert.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.True(t, c.Stopped())

	c.finish(StateStopped)
	assert.ErrorIs(t, c.Pause(), ErrNotRunning)
	assert.ErrorIs(t, c.Resume(), ErrNotRunning)
	assert.ErrorIs(t, c.Stop(), ErrNotRunning)
}

func TestControlCheckpointBlocksWhilePaused(t *testing.T) {
	c := NewControl(2 * time.Millisecond)
	require.NoError(t, c.Pause())

	var paused, resumed atomic.Int32
	result := make(chan bool, 1)
	go func() {
		result <- c.Checkpoint(context.Background(), func() { paused.Add(1) }, func() { resumed.Add(1) })
	}()

	select {
	case <-result:
		t.Fatal("checkpoint returned while paused")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, c.Resume())
	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("checkpoint did not observe resume")
	}
	assert.EqualValues(t, 1, paused.Load())
	assert.EqualValues(t, 1, resumed.Load())
}

func TestControlCheckpointObservesStop(t *testing.T) {
	c := NewControl(time.Hour)
	require.NoError(t, c.Pause())

	result := make(chan bool, 1)
	go func() { result <- c.Checkpoint(context.Background(), nil, nil) }()

	require.NoError(t, c.Stop())
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("checkpoint ignored stop")
	}

	assert.False(t, c.Checkpoint(context.Background(), nil, nil))
}

func TestControlSleep(t *testing.T) {
	c := NewControl(time.Millisecond)
	assert.True(t, c.Sleep(context.Background(), time.Millisecond))

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = c.Stop()
	}()
	start := time.Now()
	assert.False(t, c.Sleep(context.Background(), time.Minute))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.False(t, c.Sleep(context.Background(), 0))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Paused", StatePaused.String())
	assert.False(t, StatePaused.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.Equal(t, "Unknown", State(42).String())
}
