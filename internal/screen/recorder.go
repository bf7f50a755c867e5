package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Event tags a screenshot taken for something other than the step itself.
type Event string

const (
	EventNone       Event = ""
	EventAfterClick Event = "after_click"
	EventAfterWrite Event = "after_write"
	EventAfterPress Event = "after_press"
	EventError      Event = "error"
)

// Capturer is the platform capture primitive. CaptureScreen must return an
// image whose bounds start at the screen origin.
type Capturer interface {
	ScreenSize(ctx context.Context) (int, int, error)
	CaptureRegion(ctx context.Context, r Region) (image.Image, error)
	CaptureScreen(ctx context.Context) (image.Image, error)
}

type Shot struct {
	Path     string
	PNG      []byte
	Fallback bool
}

// Recorder writes region screenshots under one directory using the
// step{N}[_{event}]_{unix}.png naming scheme.
type Recorder struct {
	capturer Capturer
	dir      string
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

type RecorderOption func(*Recorder)

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(c Capturer, dir string, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		capturer: c,
		dir:      dir,
		logger:   logger.Named("recorder"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Dir() string { return r.dir }

func (r *Recorder) Capture(ctx context.Context, region Region, step int, event Event) (Shot, error) {
	img, fallback, err := r.grab(ctx, region)
	if err != nil {
		return Shot{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Shot{}, fmt.Errorf("encode screenshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return Shot{}, fmt.Errorf("create screenshot dir: %w", err)
	}
	path, err := r.uniquePath(FileName(step, event, r.now().Unix()))
	if err != nil {
		return Shot{}, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Shot{}, fmt.Errorf("write screenshot: %w", err)
	}

	r.logger.Debug("Screenshot saved",
		zap.String("path", path),
		zap.Int("step", step),
		zap.String("event", string(event)),
		zap.Bool("fallback", fallback),
	)
	return Shot{Path: path, PNG: buf.Bytes(), Fallback: fallback}, nil
}

func (r *Recorder) grab(ctx context.Context, region Region) (image.Image, bool, error) {
	img, err := r.capturer.CaptureRegion(ctx, region)
	if err == nil && img != nil {
		return img, false, nil
	}
	if err == nil {
		err = errors.New("empty capture")
	}

	r.logger.Warn("Region capture failed, falling back to full screen crop",
		zap.Stringer("region", region),
		zap.Error(err),
	)
	full, ferr := r.capturer.CaptureScreen(ctx)
	if ferr != nil {
		return nil, false, fmt.Errorf("capture %s: %w", region, errors.Join(err, ferr))
	}
	cropped, cerr := Crop(full, region)
	if cerr != nil {
		return nil, false, cerr
	}
	return cropped, true, nil
}

// uniquePath appends _2, _3, ... when a shot with the same name already
// exists, which happens when two events land in the same second.
func (r *Recorder) uniquePath(name string) (string, error) {
	path := filepath.Join(r.dir, name)
	base := strings.TrimSuffix(name, ".png")
	for n := 2; ; n++ {
		_, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return path, nil
		case err != nil:
			return "", fmt.Errorf("check screenshot path: %w", err)
		}
		path = filepath.Join(r.dir, fmt.Sprintf("%s_%d.png", base, n))
	}
}

func FileName(step int, event Event, unix int64) string {
	if event == EventNone {
		return fmt.Sprintf("step%d_%d.png", step, unix)
	}
	return fmt.Sprintf("step%d_%s_%d.png", step, event, unix)
}

// Crop copies the part of img covered by r, clamped to the image bounds.
func Crop(img image.Image, r Region) (image.Image, error) {
	rect := r.Rect().Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %s lies outside the captured screen", ErrInvalidRegion, r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}
