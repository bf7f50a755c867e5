package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nbenliogludev/go-region-ai-agent/internal/agent"
	"github.com/nbenliogludev/go-region-ai-agent/internal/browser"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/desktop"
	"github.com/nbenliogludev/go-region-ai-agent/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app carries what every sub-command needs once config is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	stdin  io.Reader
	stdout io.Writer
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	return &app{v: viper.New(), stdin: stdin, stdout: stdout}
}

// flagKeys maps command flags onto the config keys they override.
var flagKeys = map[string]string{
	"device":       "device.kind",
	"backend":      "backend.provider",
	"metrics-addr": "metrics.addr",
	"shots":        "agent.screenshots_dir",
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "region-agent",
		Short:         "Drive a screen region with a vision model until an objective is done.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			observability.Sync()
		},
	}
	root.SetOut(a.stdout)
	root.SetIn(a.stdin)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	pf.String("device", "", "device to drive: desktop, playwright or chrome")
	pf.String("shots", "", "directory for screenshots")

	root.AddCommand(newRunCmd(a), newMapCmd(a), newCaptureCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	v := a.v
	config.SetDefaults(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("REGION_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "region-agent"})
		a.logger = observability.GetLogger()
		return err
	}
	observability.InitializeLogger(cfg.Logger())
	a.cfg = cfg
	a.logger = observability.GetLogger()
	return nil
}

// openDevice builds the configured device. The returned overlay may be nil.
// ctx only bounds browser startup; the device outlives it.
func openDevice(ctx context.Context, cfg config.DeviceConfig, logger *zap.Logger) (agent.Device, agent.Overlay, func(), error) {
	noop := func() {}
	switch cfg.Kind {
	case config.DevicePlaywright:
		m, err := browser.NewManager(cfg, logger)
		if err != nil {
			return nil, nil, noop, err
		}
		return m, m, m.Close, nil
	case config.DeviceChrome:
		t, err := browser.NewTab(context.WithoutCancel(ctx), cfg, logger)
		if err != nil {
			return nil, nil, noop, err
		}
		return t, t, t.Close, nil
	default:
		return desktop.New(logger), nil, noop, nil
	}
}
