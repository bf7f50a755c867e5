package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/observability"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"go.uber.org/zap"
)

// Device is a screen the loop can both see and drive.
type Device interface {
	screen.Capturer
	Input
}

// Overlay marks the selected region on screen. It is owned by one session.
type Overlay interface {
	Show(r screen.Region) error
	Hide() error
}

// Session owns the selected region, its overlay and at most one running
// loop at a time.
type Session struct {
	id       string
	device   Device
	cfg      config.AgentConfig
	logger   *zap.Logger
	feed     *Reporter
	metrics  *observability.Metrics
	locator  llm.TextLocator
	overlay  Overlay
	recorder *screen.Recorder

	mu        sync.Mutex
	region    screen.Region
	hasRegion bool
	control   *Control
	done      chan struct{}
}

type SessionOption func(*Session)

func WithLocator(l llm.TextLocator) SessionOption {
	return func(s *Session) { s.locator = l }
}

func WithOverlay(o Overlay) SessionOption {
	return func(s *Session) { s.overlay = o }
}

func WithMetrics(m *observability.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

func WithReporter(r *Reporter) SessionOption {
	return func(s *Session) { s.feed = r }
}

func WithRecorderOptions(opts ...screen.RecorderOption) SessionOption {
	return func(s *Session) {
		s.recorder = screen.NewRecorder(s.device, s.cfg.ScreenshotsDir, s.logger, opts...)
	}
}

func NewSession(dev Device, cfg config.AgentConfig, logger *zap.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.Named("session").With(zap.String("session_id", id))

	s := &Session{
		id:     id,
		device: dev,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = NewReporter(logger)
	}
	if s.recorder == nil {
		s.recorder = screen.NewRecorder(dev, cfg.ScreenshotsDir, logger)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Feed() *Reporter { return s.feed }

func (s *Session) Region() (screen.Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region, s.hasRegion
}

// SelectRegion replaces the region and moves the overlay to it. The region
// cannot change while a loop is active.
func (s *Session) SelectRegion(r screen.Region) error {
	if _, err := screen.NewRegion(r.X, r.Y, r.Width, r.Height); err != nil {
		return &ValidationError{Field: "region", Reason: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeLocked() {
		return ErrAlreadyRunning
	}

	if s.overlay != nil {
		if s.hasRegion {
			if err := s.overlay.Hide(); err != nil {
				s.logger.Warn("Hiding previous overlay failed", zap.Error(err))
			}
		}
		if err := s.overlay.Show(r); err != nil {
			s.logger.Warn("Showing overlay failed", zap.Stringer("region", r), zap.Error(err))
		}
	}
	s.region = r
	s.hasRegion = true
	s.feed.Log("Region selected: "+r.String(), CategoryInfo)
	return nil
}

// Start validates the request and launches the loop in the background.
// ctx bounds device calls for the whole run; use Stop to end it cleanly.
func (s *Session) Start(ctx context.Context, objective string, backend llm.Backend) error {
	objective = strings.TrimSpace(objective)
	if objective == "" {
		return &ValidationError{Field: "objective", Reason: "must not be empty"}
	}
	if backend == nil {
		return &ValidationError{Field: "backend", Reason: "no backend selected"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRegion {
		return &ValidationError{Field: "region", Reason: "no region selected"}
	}
	if s.activeLocked() {
		return ErrAlreadyRunning
	}

	if c, ok := backend.(interface{ Reset() }); ok {
		c.Reset()
	}

	control := NewControl(s.cfg.PausePollInterval)
	runner := &Runner{
		objective: objective,
		region:    s.region,
		backend:   backend,
		device:    s.device,
		recorder:  s.recorder,
		executor:  NewExecutor(s.device, s.locator, s.feed, s.logger, s.cfg.ClickSettle, s.cfg.KeyHold),
		control:   control,
		feed:      s.feed,
		logger:    s.logger.Named("runner"),
		metrics:   s.metrics,
		cfg:       s.cfg,
		history:   NewHistory(s.cfg.HistorySize),
	}

	done := make(chan struct{})
	s.control = control
	s.done = done
	go func() {
		defer close(done)
		runner.Run(ctx)
	}()
	return nil
}

func (s *Session) Pause() error {
	c := s.currentControl()
	if c == nil {
		return ErrNotRunning
	}
	return c.Pause()
}

func (s *Session) Resume() error {
	c := s.currentControl()
	if c == nil {
		return ErrNotRunning
	}
	return c.Resume()
}

func (s *Session) Stop() error {
	c := s.currentControl()
	if c == nil {
		return ErrNotRunning
	}
	return c.Stop()
}

// Wait blocks until the current loop exits and returns its final state.
func (s *Session) Wait() State {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return StateIdle
	}
	<-done
	return s.State()
}

func (s *Session) State() State {
	c := s.currentControl()
	if c == nil {
		return StateIdle
	}
	return c.State()
}

// Close stops an active loop, waits for it and removes the overlay.
func (s *Session) Close() error {
	if err := s.Stop(); err == nil {
		s.Wait()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay != nil && s.hasRegion {
		return s.overlay.Hide()
	}
	return nil
}

func (s *Session) currentControl() *Control {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control
}

func (s *Session) activeLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
