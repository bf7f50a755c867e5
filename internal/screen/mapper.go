package screen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Center is the fallback percent used when a locator cannot be resolved.
const Center = 0.5

// Map converts a region-relative percent point into an absolute screen pixel.
// Percents outside [0,1] are accepted; the result is always clamped to
// [0, screenW-1] x [0, screenH-1].
func Map(r Region, px, py float64, screenW, screenH int) (int, int) {
	ax := math.Round(float64(r.Width)*px) + float64(r.X)
	ay := math.Round(float64(r.Height)*py) + float64(r.Y)
	return clamp(ax, screenW-1), clamp(ay, screenH-1)
}

// MapLocator parses the decimal-string form stored on click actions and maps it.
func MapLocator(r Region, x, y string, screenW, screenH int) (int, int, error) {
	px, err := ParsePercent(x)
	if err != nil {
		return 0, 0, err
	}
	py, err := ParsePercent(y)
	if err != nil {
		return 0, 0, err
	}
	ax, ay := Map(r, px, py, screenW, screenH)
	return ax, ay, nil
}

func ParsePercent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	return v, nil
}

func clamp(v float64, hi int) int {
	if hi < 0 {
		hi = 0
	}
	switch {
	case v < 0:
		return 0
	case v > float64(hi):
		return hi
	}
	return int(v)
}
