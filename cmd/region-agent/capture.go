package main

import (
	"fmt"

	"github.com/nbenliogludev/go-region-ai-agent/internal/agent"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCaptureCmd(a *app) *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Save one screenshot of a region through the recorder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := screen.ParseRegion(region)
			if err != nil {
				return &agent.ValidationError{Field: "region", Reason: err.Error()}
			}

			dev, _, closeDevice, err := openDevice(cmd.Context(), a.cfg.Device(), a.logger)
			if err != nil {
				return fmt.Errorf("open %s device: %w", a.cfg.Device().Kind, err)
			}
			defer closeDevice()

			rec := screen.NewRecorder(dev, a.cfg.Agent().ScreenshotsDir, a.logger)
			shot, err := rec.Capture(cmd.Context(), r, 0, screen.EventNone)
			if err != nil {
				return fmt.Errorf("capture %s: %w", r, err)
			}
			if shot.Fallback {
				a.logger.Warn("Region capture failed, used full-screen crop", zap.Stringer("region", r))
			}
			fmt.Fprintln(cmd.OutOrStdout(), shot.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&region, "region", "r", "", "screen region as x,y,width,height")
	return cmd
}
