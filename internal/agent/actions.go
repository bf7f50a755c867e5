package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"go.uber.org/zap"
)

// Input is the set of primitive device operations the executor drives.
type Input interface {
	MoveMouse(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	KeyPress(ctx context.Context, key string) error
}

// Target is what a click needs to resolve its locator.
type Target struct {
	Region     screen.Region
	ScreenW    int
	ScreenH    int
	Screenshot []byte
}

type Executor struct {
	input   Input
	locator llm.TextLocator
	feed    Logger
	logger  *zap.Logger

	settle time.Duration
	hold   time.Duration
}

func NewExecutor(in Input, locator llm.TextLocator, feed Logger, logger *zap.Logger, settle, hold time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		input:   in,
		locator: locator,
		feed:    feed,
		logger:  logger.Named("executor"),
		settle:  settle,
		hold:    hold,
	}
}

// Execute runs one action against the device. Failures, panics included,
// are logged and reported as false; they never escape.
func (e *Executor) Execute(ctx context.Context, a action.Action, t Target) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.fail(a, fmt.Errorf("panic: %v", rec))
			ok = false
		}
	}()

	var err error
	switch a.Operation {
	case action.KindClick:
		err = e.click(ctx, a, t)
	case action.KindWrite:
		err = e.input.TypeText(ctx, a.Content)
	case action.KindPress:
		err = e.press(ctx, a.Keys)
	case action.KindDone:
		return true
	default:
		err = fmt.Errorf("unsupported operation %q", a.Operation)
	}
	if err != nil {
		e.fail(a, err)
		return false
	}
	return true
}

func (e *Executor) fail(a action.Action, err error) {
	wrapped := fmt.Errorf("%w: %s: %w", ErrExecution, a.Describe(), err)
	e.feed.Log(wrapped.Error(), CategoryError)
	e.logger.Error("Action failed", zap.String("operation", string(a.Operation)), zap.Error(err))
}

func (e *Executor) click(ctx context.Context, a action.Action, t Target) error {
	px, py := e.resolve(ctx, a, t)
	x, y := screen.Map(t.Region, px, py, t.ScreenW, t.ScreenH)
	e.logger.Debug("Click resolved",
		zap.Float64("px", px), zap.Float64("py", py),
		zap.Int("x", x), zap.Int("y", y),
	)

	if err := e.input.MoveMouse(ctx, x, y); err != nil {
		return fmt.Errorf("move to (%d, %d): %w", x, y, err)
	}
	pause(ctx, e.settle)
	if err := e.input.Click(ctx, x, y); err != nil {
		return fmt.Errorf("click at (%d, %d): %w", x, y, err)
	}
	return nil
}

// resolve returns region-relative fractions for a click. Anything that
// cannot be resolved lands on the region center.
func (e *Executor) resolve(ctx context.Context, a action.Action, t Target) (float64, float64) {
	if text, ok := a.TextTarget(); ok {
		if e.locator == nil {
			e.feed.Log(fmt.Sprintf("No text locator configured for %q, clicking region center", text), CategoryWarning)
			return screen.Center, screen.Center
		}
		px, py, err := e.locator.Locate(ctx, t.Screenshot, text)
		if err != nil {
			e.feed.Log(fmt.Sprintf("Could not locate %q (%v), clicking region center", text, err), CategoryWarning)
			return screen.Center, screen.Center
		}
		return px, py
	}

	px, errX := screen.ParsePercent(a.X)
	py, errY := screen.ParsePercent(a.Y)
	if err := errors.Join(errX, errY); err != nil {
		e.feed.Log(fmt.Sprintf("Invalid click coordinates x=%q y=%q, clicking region center", a.X, a.Y), CategoryWarning)
		return screen.Center, screen.Center
	}
	return px, py
}

// press holds multi-key combinations down in order and releases them in
// reverse. Keys already down are released even when a later one fails.
func (e *Executor) press(ctx context.Context, keys []string) error {
	switch len(keys) {
	case 0:
		return errors.New("press without keys")
	case 1:
		return e.input.KeyPress(ctx, keys[0])
	}

	var errs []error
	down := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := e.input.KeyDown(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("key down %q: %w", k, err))
			break
		}
		down = append(down, k)
	}
	if len(errs) == 0 {
		pause(ctx, e.hold)
	}
	// Held keys must come up even when the run was cancelled during the hold.
	release := context.WithoutCancel(ctx)
	for i := len(down) - 1; i >= 0; i-- {
		if err := e.input.KeyUp(release, down[i]); err != nil {
			errs = append(errs, fmt.Errorf("key up %q: %w", down[i], err))
		}
	}
	return errors.Join(errs...)
}

// pause is an in-action delay; it does not observe stop requests since an
// action already started is always carried through.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
