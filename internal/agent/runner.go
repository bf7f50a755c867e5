package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/observability"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"go.uber.org/zap"
)

// Summary used when the backend keeps failing for every retry of a step.
const UnableToAnalyze = "unable to analyze"

// Runner drives one automation loop from Running to a terminal state.
type Runner struct {
	objective string
	region    screen.Region
	backend   llm.Backend
	device    Device
	recorder  *screen.Recorder
	executor  *Executor
	control   *Control
	feed      Logger
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       config.AgentConfig
	history   *History
}

// Run blocks until the loop reaches Completed, Stopped or Failed. Faults
// inside an iteration never end the run.
func (r *Runner) Run(ctx context.Context) State {
	start := time.Now()
	r.feed.Log(fmt.Sprintf("Starting objective %q in region %s with %s", r.objective, r.region, r.backend.Name()), CategoryStatus)

	// Model calls are abandoned on stop; device calls only follow ctx.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.control.Done():
			cancel()
		case <-callCtx.Done():
		}
	}()

	state := StateFailed
	for step := 1; step <= r.cfg.MaxIterations; step++ {
		if !r.control.Checkpoint(ctx, r.onPause, r.onResume) {
			state = StateStopped
			break
		}

		r.metrics.Iteration()
		r.feed.Log(fmt.Sprintf("Iteration %d/%d", step, r.cfg.MaxIterations), CategoryInfo)

		done, err := r.safeIteration(ctx, callCtx, step)
		if err != nil {
			r.fault(ctx, step, err)
			continue
		}
		if done {
			state = StateCompleted
			break
		}
	}
	if state == StateFailed && (r.control.Stopped() || ctx.Err() != nil) {
		state = StateStopped
	}

	r.control.finish(state)
	r.metrics.Run(state.String())
	category := CategoryStatus
	if state == StateCompleted {
		category = CategorySuccess
	}
	r.feed.Log(fmt.Sprintf("%s: %s", state, humanizeReason(state)), category)
	r.logger.Info("Run finished",
		zap.Stringer("state", state),
		zap.Duration("duration", time.Since(start)),
		zap.Int("history", r.history.Len()),
	)
	return state
}

func (r *Runner) safeIteration(ctx, callCtx context.Context, step int) (done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &IterationFault{Step: step, Cause: fmt.Errorf("panic: %v", rec), Stack: debug.Stack()}
		}
	}()

	done, err = r.runIteration(ctx, callCtx, step)
	if err != nil {
		err = &IterationFault{Step: step, Cause: err}
	}
	return done, err
}

func (r *Runner) fault(ctx context.Context, step int, err error) {
	r.metrics.Fault()
	r.feed.Log(fmt.Sprintf("Iteration %d failed: %v", step, err), CategoryError)
	if f, ok := err.(*IterationFault); ok && len(f.Stack) > 0 {
		r.feed.Log(string(f.Stack), CategoryTrace)
	}
	r.logger.Error("Iteration fault", zap.Int("step", step), zap.Error(err))

	if _, cerr := r.recorder.Capture(ctx, r.region, step, screen.EventError); cerr != nil {
		r.feed.Log(fmt.Sprintf("Diagnostic screenshot failed: %v", cerr), CategoryWarning)
	}
	r.control.Sleep(ctx, r.cfg.FaultCooldown)
}

func (r *Runner) onPause() {
	r.feed.Log("Paused", CategoryStatus)
}

func (r *Runner) onResume() {
	r.feed.Log("Resumed", CategoryStatus)
}
