package agent

import (
	"context"
	"sync"
	"time"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateCompleted:
		return "Completed"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s State) Terminal() bool { return s >= StateCompleted }

// Control carries pause, resume and stop requests from the foreground to the
// loop. Requests take effect only at the loop's checkpoints.
type Control struct {
	poll time.Duration

	mu       sync.Mutex
	state    State
	stopOnce sync.Once
	stop     chan struct{}
}

func NewControl(poll time.Duration) *Control {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Control{poll: poll, state: StateRunning, stop: make(chan struct{})}
}

func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Control) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRunning:
		c.state = StatePaused
		return nil
	case StatePaused:
		return nil
	}
	return ErrNotRunning
}

func (c *Control) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePaused:
		c.state = StateRunning
		return nil
	case StateRunning:
		return nil
	}
	return ErrNotRunning
}

// Stop asks the loop to finish at its next checkpoint.
func (c *Control) Stop() error {
	if c.State().Terminal() {
		return ErrNotRunning
	}
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Control) Stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Done is closed once stop has been requested.
func (c *Control) Done() <-chan struct{} { return c.stop }

// Checkpoint blocks while paused, polling for resume or stop. It reports
// whether the loop may continue. onPause and onResume fire once per pause.
func (c *Control) Checkpoint(ctx context.Context, onPause, onResume func()) bool {
	if c.Stopped() || ctx.Err() != nil {
		return false
	}
	if c.State() != StatePaused {
		return true
	}

	if onPause != nil {
		onPause()
	}
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.State() != StatePaused {
				if onResume != nil {
					onResume()
				}
				return true
			}
		}
	}
}

// Sleep waits for d unless a stop request or ctx ends it early. It reports
// whether the full duration elapsed.
func (c *Control) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !c.Stopped()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Control) finish(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
