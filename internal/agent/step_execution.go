package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
)

const repeatWarnAt = 3

// runIteration captures the region, asks the backend for a batch and runs
// it. It returns true once a done action is reached.
func (r *Runner) runIteration(ctx, callCtx context.Context, step int) (bool, error) {
	shot, err := r.recorder.Capture(ctx, r.region, step, screen.EventNone)
	if err != nil {
		return false, fmt.Errorf("capture region: %w", err)
	}
	r.feed.Log("Screenshot saved to "+shot.Path, CategoryTrace)

	sw, sh, err := r.device.ScreenSize(ctx)
	if err != nil {
		return false, fmt.Errorf("screen size: %w", err)
	}

	actions, err := r.decide(callCtx, shot.PNG)
	if err != nil {
		// Only a stop or a canceled ctx gets here; the next checkpoint ends the run.
		return false, nil
	}

	target := Target{Region: r.region, ScreenW: sw, ScreenH: sh, Screenshot: shot.PNG}
	for i, a := range actions {
		if i > 0 && !r.control.Sleep(ctx, r.cfg.BetweenActions) {
			return false, nil
		}
		if !r.control.Checkpoint(ctx, r.onPause, r.onResume) {
			return false, nil
		}

		r.feed.LogOperation(a)
		if a.Thought != "" {
			r.feed.Log(a.Thought, CategoryThought)
		}
		if a.Operation == action.KindDone {
			r.feed.Log("Done: "+a.Summary, CategorySuccess)
			return true, nil
		}

		ok := r.executor.Execute(ctx, a, target)
		r.metrics.Action(string(a.Operation), ok)
		r.history.Add(a)
		if n := r.history.Repeats(); n >= repeatWarnAt {
			r.feed.Log(fmt.Sprintf("Same action repeated %d times in a row: %s", n, a.Describe()), CategoryWarning)
		}

		wait, event := r.afterAction(a.Operation)
		pause(ctx, wait)
		if _, err := r.recorder.Capture(ctx, r.region, step, event); err != nil {
			r.feed.Log(fmt.Sprintf("Post-action screenshot failed: %v", err), CategoryWarning)
		}
	}
	return false, nil
}

// decide calls the backend with a fixed backoff. When every attempt fails
// the step resolves to a synthetic done instead of an error; an error is
// returned only when the run is being stopped.
func (r *Runner) decide(ctx context.Context, image []byte) ([]action.Action, error) {
	req := llm.Request{
		Image:     image,
		MediaType: "image/png",
		Objective: r.objective,
		History:   r.history.Actions(),

		RegionWidth:  r.region.Width,
		RegionHeight: r.region.Height,
	}
	attempts := max(r.cfg.BackendAttempts, 1)

	attempt := 0
	actions, err := backoff.Retry(ctx, func() ([]action.Action, error) {
		attempt++
		started := time.Now()
		acts, err := r.backend.NextActions(ctx, req)
		if err == nil && len(acts) == 0 {
			err = action.ErrMalformedResponse
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			r.metrics.BackendFailure(r.backend.Name())
			r.feed.Log(fmt.Sprintf("Model call %d/%d failed: %v", attempt, attempts, err), CategoryWarning)
			return nil, err
		}
		r.feed.Log(fmt.Sprintf("Model proposed %s (%s)", describeBatch(acts), time.Since(started).Truncate(time.Millisecond)), CategoryLLM)
		return acts, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.cfg.BackendRetryDelay)),
		backoff.WithMaxTries(uint(attempts)),
	)
	if err == nil {
		return actions, nil
	}
	if r.control.Stopped() || ctx.Err() != nil {
		return nil, err
	}

	r.feed.Log(fmt.Sprintf("Model unavailable after %d attempts: %v", attempts, err), CategoryError)
	return []action.Action{action.Done(UnableToAnalyze)}, nil
}

func (r *Runner) afterAction(kind action.Kind) (time.Duration, screen.Event) {
	switch kind {
	case action.KindClick:
		return r.cfg.AfterClick, screen.EventAfterClick
	case action.KindWrite:
		return r.cfg.AfterWrite, screen.EventAfterWrite
	default:
		return r.cfg.AfterPress, screen.EventAfterPress
	}
}

func describeBatch(acts []action.Action) string {
	parts := make([]string, len(acts))
	for i, a := range acts {
		parts[i] = a.Describe()
	}
	return strings.Join(parts, "; ")
}
