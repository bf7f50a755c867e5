package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Started by an init in go.opencensus.io, a genai dependency.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type fakeDevice struct {
	mu    sync.Mutex
	calls []string
	typed []string

	sizeErrs   int
	regionErr  error
	keyDownErr map[string]error
	onType     func(text string)
	onClick    func(x, y int)
	onKeyDown  func(key string)
	// honorCtx makes input calls fail on a done context, like the real devices.
	honorCtx bool
}

func (d *fakeDevice) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDevice) Typed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.typed...)
}

func (d *fakeDevice) ScreenSize(context.Context) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sizeErrs > 0 {
		d.sizeErrs--
		return 0, 0, errors.New("display unavailable")
	}
	return 1920, 1080, nil
}

func (d *fakeDevice) CaptureRegion(_ context.Context, r screen.Region) (image.Image, error) {
	if d.regionErr != nil {
		return nil, d.regionErr
	}
	return image.NewRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
}

func (d *fakeDevice) CaptureScreen(context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1920, 1080)), nil
}

func (d *fakeDevice) MoveMouse(_ context.Context, x, y int) error {
	d.record("move %d,%d", x, y)
	return nil
}

func (d *fakeDevice) Click(_ context.Context, x, y int) error {
	d.record("click %d,%d", x, y)
	if d.onClick != nil {
		d.onClick(x, y)
	}
	return nil
}

func (d *fakeDevice) TypeText(_ context.Context, text string) error {
	d.record("type %s", text)
	d.mu.Lock()
	d.typed = append(d.typed, text)
	d.mu.Unlock()
	if d.onType != nil {
		d.onType(text)
	}
	return nil
}

func (d *fakeDevice) KeyDown(ctx context.Context, key string) error {
	if d.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if err := d.keyDownErr[key]; err != nil {
		return err
	}
	d.record("down %s", key)
	if d.onKeyDown != nil {
		d.onKeyDown(key)
	}
	return nil
}

func (d *fakeDevice) KeyUp(ctx context.Context, key string) error {
	if d.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	d.record("up %s", key)
	return nil
}

func (d *fakeDevice) KeyPress(_ context.Context, key string) error {
	d.record("press %s", key)
	return nil
}

// scriptedBackend answers each call with reply(n, req), n starting at 1.
// With started set it instead signals the first call and blocks until the
// request context ends.
type scriptedBackend struct {
	reply   func(n int, req llm.Request) ([]action.Action, error)
	started chan struct{}

	mu       sync.Mutex
	requests []llm.Request
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) NextActions(ctx context.Context, req llm.Request) ([]action.Action, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	n := len(b.requests)
	b.mu.Unlock()

	if b.started != nil {
		if n == 1 {
			close(b.started)
		}
		<-ctx.Done()
		return nil, &llm.BackendError{Provider: b.Name(), Cause: ctx.Err()}
	}
	return b.reply(n, req)
}

func (b *scriptedBackend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Request(nil), b.requests...)
}

func always(acts ...action.Action) func(int, llm.Request) ([]action.Action, error) {
	return func(int, llm.Request) ([]action.Action, error) { return acts, nil }
}

var testRegion = screen.Region{X: 200, Y: 100, Width: 400, Height: 300}

func testConfig(t *testing.T) config.AgentConfig {
	t.Helper()
	cfg := config.NewDefaultConfig().Agent()
	cfg.ScreenshotsDir = t.TempDir()
	cfg.BackendRetryDelay = time.Millisecond
	cfg.PausePollInterval = 5 * time.Millisecond
	cfg.FaultCooldown = time.Millisecond
	cfg.ClickSettle = 0
	cfg.KeyHold = 0
	cfg.AfterClick = 0
	cfg.AfterWrite = 0
	cfg.AfterPress = 0
	cfg.BetweenActions = 0
	return cfg
}

func newTestSession(t *testing.T, dev *fakeDevice, cfg config.AgentConfig, opts ...SessionOption) *Session {
	t.Helper()
	s := NewSession(dev, cfg, nil, opts...)
	require.NoError(t, s.SelectRegion(testRegion))
	return s
}

func screenshots(t *testing.T, dir, contains string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.Contains(e.Name(), contains) {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	return names
}

func feedContains(r *Reporter, category Category, substr string) bool {
	for _, e := range r.Entries(0) {
		if e.Category == category && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
