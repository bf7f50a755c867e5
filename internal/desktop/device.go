// Package desktop drives the primary display of the local machine.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/go-vgo/robotgo"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"go.uber.org/zap"
)

var ErrNoDisplay = errors.New("no display available")

// Device implements the loop's capture and input primitives with robotgo.
// It has no overlay of its own.
type Device struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{logger: logger.Named("desktop")}
}

func (d *Device) ScreenSize(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	w, h := robotgo.GetScreenSize()
	if w <= 0 || h <= 0 {
		return 0, 0, ErrNoDisplay
	}
	return w, h, nil
}

func (d *Device) CaptureRegion(ctx context.Context, r screen.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := robotgo.CaptureImg(r.X, r.Y, r.Width, r.Height)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", r, err)
	}
	return img, nil
}

func (d *Device) CaptureScreen(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}

func (d *Device) MoveMouse(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.Move(x, y)
	return nil
}

// Click presses the left button where the pointer is; the loop always moves
// there first.
func (d *Device) Click(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cx, cy := robotgo.Location(); cx != x || cy != y {
		d.logger.Debug("Pointer drifted before click", zap.Int("x", cx), zap.Int("y", cy))
		robotgo.Move(x, y)
	}
	robotgo.Click("left", false)
	return nil
}

func (d *Device) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.TypeStr(text)
	return nil
}

func (d *Device) KeyDown(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return robotgo.KeyToggle(robotKey(key), "down")
}

func (d *Device) KeyUp(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return robotgo.KeyToggle(robotKey(key), "up")
}

func (d *Device) KeyPress(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return robotgo.KeyTap(robotKey(key))
}

// robotKey maps canonical key names onto robotgo's names.
func robotKey(key string) string {
	switch key = strings.ToLower(key); key {
	case "win":
		return "cmd"
	case "pgup":
		return "pageup"
	case "pgdn":
		return "pagedown"
	case "del":
		return "delete"
	default:
		return key
	}
}
