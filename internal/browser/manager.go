package browser

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Manager is a Playwright-driven Chromium page used as the screen: the
// viewport is the display and regions are viewport rectangles.
type Manager struct {
	pw      *playwright.Playwright
	Context playwright.BrowserContext
	Page    playwright.Page
	logger  *zap.Logger
}

func NewManager(cfg config.DeviceConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("playwright")

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return nil, fmt.Errorf("install pw failed: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start pw failed: %w", err)
	}

	userDataDir, _ := os.Getwd()
	userDataDir = filepath.Join(userDataDir, ".playwright_data")

	bctx, err := pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(cfg.Headless),
		Viewport: &playwright.Size{Width: cfg.Width, Height: cfg.Height},
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(30000)

	if cfg.StartURL != "" {
		if _, err := page.Goto(cfg.StartURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			_ = bctx.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("could not navigate to %s: %w", cfg.StartURL, err)
		}
	}
	logger.Info("Browser ready", zap.String("url", page.URL()), zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))

	return &Manager{pw: pw, Context: bctx, Page: page, logger: logger}, nil
}

func (m *Manager) Close() {
	if m.Context != nil {
		_ = m.Context.Close()
	}
	if m.pw != nil {
		_ = m.pw.Stop()
	}
}

func (m *Manager) ScreenSize(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if size := m.Page.ViewportSize(); size != nil {
		return size.Width, size.Height, nil
	}
	res, err := m.Page.Evaluate(viewportScript)
	if err != nil {
		return 0, 0, fmt.Errorf("read viewport: %w", err)
	}
	dims, ok := res.([]interface{})
	if !ok || len(dims) != 2 {
		return 0, 0, fmt.Errorf("unexpected viewport result %v", res)
	}
	return toInt(dims[0]), toInt(dims[1]), nil
}

func (m *Manager) CaptureRegion(ctx context.Context, r screen.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := m.Page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
		Clip: &playwright.Rect{
			X:      float64(r.X),
			Y:      float64(r.Y),
			Width:  float64(r.Width),
			Height: float64(r.Height),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", r, err)
	}
	return decodePNG(data)
}

func (m *Manager) CaptureScreen(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := m.Page.Screenshot(playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return decodePNG(data)
}

func (m *Manager) MoveMouse(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Page.Mouse().Move(float64(x), float64(y))
}

func (m *Manager) Click(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Page.Mouse().Click(float64(x), float64(y))
}

func (m *Manager) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Page.Keyboard().Type(text)
}

func (m *Manager) KeyDown(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Page.Keyboard().Down(lookupKey(key).Key)
}

func (m *Manager) KeyUp(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Page.Keyboard().Up(lookupKey(key).Key)
}

func (m *Manager) KeyPress(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Page.Keyboard().Press(lookupKey(key).Key)
}

// Show draws a border around r inside the page.
func (m *Manager) Show(r screen.Region) error {
	_, err := m.Page.Evaluate(showOverlayScript(r))
	return err
}

func (m *Manager) Hide() error {
	_, err := m.Page.Evaluate(hideOverlayScript())
	return err
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
