package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nbenliogludev/go-region-ai-agent/internal/agent"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMapCmd(a *app) *cobra.Command {
	var region, x, y, size string
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Print the absolute pixel a region-relative point maps to",
		Example: `  region-agent map --region 200,100,400,300 --x 0.75 --y 0.25
  (500, 175)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := screen.ParseRegion(region)
			if err != nil {
				return &agent.ValidationError{Field: "region", Reason: err.Error()}
			}
			w, h, err := parseSize(size)
			if err != nil {
				return &agent.ValidationError{Field: "screen", Reason: err.Error()}
			}

			px, py, err := screen.MapLocator(r, x, y, w, h)
			if errors.Is(err, screen.ErrInvalidCoordinate) {
				a.logger.Warn("Invalid coordinate, using region center", zap.String("x", x), zap.String("y", y))
				px, py = screen.Map(r, screen.Center, screen.Center, w, h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(%d, %d)\n", px, py)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&region, "region", "r", "", "screen region as x,y,width,height")
	f.StringVar(&x, "x", "0.5", "horizontal percent of the region, 0..1")
	f.StringVar(&y, "y", "0.5", "vertical percent of the region, 0..1")
	f.StringVar(&size, "screen", "1920x1080", "screen size used for clamping, WIDTHxHEIGHT")
	return cmd
}

func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("want WIDTHxHEIGHT, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("bad width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("bad height %q", h)
	}
	return width, height, nil
}
