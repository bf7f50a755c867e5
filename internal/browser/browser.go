package browser

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"go.uber.org/zap"
)

// Tab drives a Chrome tab over the DevTools protocol, either a browser it
// launched itself or one already running at cfg.RemoteURL.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu   sync.Mutex
	held input.Modifier
}

func NewTab(ctx context.Context, cfg config.DeviceConfig, logger *zap.Logger) (*Tab, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(cfg.Width, cfg.Height),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		taskCancel()
		allocCancel()
	}

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(cfg.Width), int64(cfg.Height)),
	}
	if cfg.StartURL != "" {
		actions = append(actions, chromedp.Navigate(cfg.StartURL))
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("start chrome tab: %w", err)
	}
	logger.Info("Chrome tab ready",
		zap.String("remote", cfg.RemoteURL),
		zap.String("url", cfg.StartURL),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
	)

	return &Tab{ctx: taskCtx, cancel: cancel, logger: logger}, nil
}

func (t *Tab) Close() {
	t.cancel()
}

// run executes actions in the tab's own context once the caller's ctx has
// been checked; chromedp actions must run under the tab context.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(t.ctx, actions...)
}

func (t *Tab) ScreenSize(ctx context.Context) (int, int, error) {
	var dims []int
	if err := t.run(ctx, chromedp.Evaluate(viewportScript, &dims)); err != nil {
		return 0, 0, fmt.Errorf("read viewport: %w", err)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport result %v", dims)
	}
	return dims[0], dims[1], nil
}

func (t *Tab) CaptureRegion(ctx context.Context, r screen.Region) (image.Image, error) {
	var data []byte
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{
				X:      float64(r.X),
				Y:      float64(r.Y),
				Width:  float64(r.Width),
				Height: float64(r.Height),
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", r, err)
	}
	return decodePNG(data)
}

func (t *Tab) CaptureScreen(ctx context.Context) (image.Image, error) {
	var data []byte
	if err := t.run(ctx, chromedp.CaptureScreenshot(&data)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return decodePNG(data)
}

func (t *Tab) MoveMouse(ctx context.Context, x, y int) error {
	return t.run(ctx, input.DispatchMouseEvent(input.MouseMoved, float64(x), float64(y)).
		WithModifiers(t.modifiers()))
}

func (t *Tab) Click(ctx context.Context, x, y int) error {
	return t.run(ctx, chromedp.MouseClickXY(float64(x), float64(y)))
}

func (t *Tab) TypeText(ctx context.Context, text string) error {
	return t.run(ctx, input.InsertText(text))
}

func (t *Tab) KeyDown(ctx context.Context, key string) error {
	def := lookupKey(key)
	if err := t.run(ctx, keyEvent(input.KeyDown, def, t.modifiers())); err != nil {
		return fmt.Errorf("key down %s: %w", def.Key, err)
	}
	t.mu.Lock()
	t.held |= def.Modifier
	t.mu.Unlock()
	return nil
}

func (t *Tab) KeyUp(ctx context.Context, key string) error {
	def := lookupKey(key)
	t.mu.Lock()
	t.held &^= def.Modifier
	t.mu.Unlock()
	if err := t.run(ctx, keyEvent(input.KeyUp, def, t.modifiers())); err != nil {
		return fmt.Errorf("key up %s: %w", def.Key, err)
	}
	return nil
}

func (t *Tab) KeyPress(ctx context.Context, key string) error {
	if err := t.KeyDown(ctx, key); err != nil {
		return err
	}
	return t.KeyUp(ctx, key)
}

func (t *Tab) Show(r screen.Region) error {
	return chromedp.Run(t.ctx, chromedp.Evaluate(showOverlayScript(r), nil))
}

func (t *Tab) Hide() error {
	return chromedp.Run(t.ctx, chromedp.Evaluate(hideOverlayScript(), nil))
}

func (t *Tab) modifiers() input.Modifier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held
}

// keyEvent builds a DOM key event. Printable keys pressed without ctrl, alt
// or meta also carry their text so the page receives a character.
func keyEvent(typ input.KeyType, def keyDef, mods input.Modifier) *input.DispatchKeyEventParams {
	p := input.DispatchKeyEvent(typ).
		WithKey(def.Key).
		WithModifiers(mods)
	if def.Code != "" {
		p = p.WithCode(def.Code)
	}
	if def.KeyCode != 0 {
		p = p.WithWindowsVirtualKeyCode(def.KeyCode).WithNativeVirtualKeyCode(def.KeyCode)
	}
	if typ == input.KeyDown && def.Printable() && mods&^input.ModifierShift == 0 {
		p = p.WithText(def.Key)
	}
	return p
}
