package screen

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

var ErrInvalidRegion = errors.New("invalid region")

// Region is a rectangle in absolute screen pixels. It bounds both capture
// and click targeting for one automation session.
type Region struct {
	X      int `json:"x" mapstructure:"x"`
	Y      int `json:"y" mapstructure:"y"`
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

func NewRegion(x, y, width, height int) (Region, error) {
	if width <= 0 || height <= 0 {
		return Region{}, fmt.Errorf("%w: size %dx%d must be positive", ErrInvalidRegion, width, height)
	}
	return Region{X: x, Y: y, Width: width, Height: height}, nil
}

// ParseRegion reads "x,y,w,h". Whitespace around the numbers is ignored.
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: want x,y,w,h, got %q", ErrInvalidRegion, s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidRegion, p)
		}
		v[i] = n
	}
	return NewRegion(v[0], v[1], v[2], v[3])
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Contains reports whether the point lies inside the region, right and
// bottom edges included (a percent of 1.0 maps onto them).
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Within reports whether the region fits on a screen of the given size.
func (r Region) Within(screenW, screenH int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= screenW && r.Y+r.Height <= screenH
}
