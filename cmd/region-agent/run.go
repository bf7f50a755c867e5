package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/agent"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/nbenliogludev/go-region-ai-agent/internal/llm"
	"github.com/nbenliogludev/go-region-ai-agent/internal/observability"
	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errRunFailed = errors.New("objective not completed")

const summaryTimeout = time.Minute

type runOptions struct {
	objective string
	region    string
	apiKey    string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automation loop against a screen region",
		Long: `Run captures the region, asks the selected model for the next actions and
performs them until the model reports done or the iteration cap is hit.

While running, type p (pause), r (resume) or s (stop) followed by Enter.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.objective, "objective", "o", "", "what the agent should achieve")
	f.StringVarP(&opts.region, "region", "r", "", "screen region as x,y,width,height")
	f.StringVar(&opts.apiKey, "api-key", "", "credential for the selected backend (overrides config)")
	f.String("backend", "", "model backend: openai, anthropic, gemini or qwen")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func (a *app) run(ctx context.Context, opts runOptions) error {
	region, err := screen.ParseRegion(opts.region)
	if err != nil {
		return &agent.ValidationError{Field: "region", Reason: err.Error()}
	}
	if strings.TrimSpace(opts.objective) == "" {
		return &agent.ValidationError{Field: "objective", Reason: "must not be empty"}
	}

	backend, err := llm.NewBackend(ctx, a.cfg.Backend(), opts.apiKey, a.logger)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			return &agent.ValidationError{Field: "credential", Reason: err.Error()}
		}
		return err
	}

	dev, overlay, closeDevice, err := openDevice(ctx, a.cfg.Device(), a.logger)
	if err != nil {
		return fmt.Errorf("open %s device: %w", a.cfg.Device().Kind, err)
	}
	defer closeDevice()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if addr := a.cfg.Metrics().Addr; addr != "" {
		srv := serveMetrics(addr, reg, a.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sessionOpts := []agent.SessionOption{agent.WithMetrics(observability.NewMetrics(reg))}
	if overlay != nil {
		sessionOpts = append(sessionOpts, agent.WithOverlay(overlay))
	}
	if loc := a.buildLocator(opts.apiKey); loc != nil {
		sessionOpts = append(sessionOpts, agent.WithLocator(loc))
	}
	session := agent.NewSession(dev, a.cfg.Agent(), a.logger, sessionOpts...)
	defer func() { _ = session.Close() }()

	if err := session.SelectRegion(region); err != nil {
		return err
	}

	start := time.Now()
	// The loop must not be torn down by the interrupt that asks it to stop.
	loopCtx := context.WithoutCancel(ctx)
	if err := session.Start(loopCtx, opts.objective, backend); err != nil {
		return err
	}
	a.logger.Info("Session started",
		zap.String("session_id", session.ID()),
		zap.Stringer("region", region),
		zap.String("backend", backend.Name()),
	)
	fmt.Fprintln(a.stdout, "Commands: p (pause), r (resume), s (stop)")
	go readControls(a.stdin, session, a.stdout)

	finished := make(chan agent.State, 1)
	go func() { finished <- session.Wait() }()

	var final agent.State
	select {
	case final = <-finished:
	case <-ctx.Done():
		fmt.Fprintln(a.stdout, "Interrupt received, stopping after the current action...")
		_ = session.Stop()
		final = <-finished
	}

	report := agent.Report{
		Objective: opts.objective,
		Duration:  time.Since(start),
		State:     final,
	}
	if s, ok := llm.SummarizerOf(backend); ok {
		sumCtx, cancel := context.WithTimeout(loopCtx, summaryTimeout)
		summary, err := s.Summarize(sumCtx, opts.objective, final.String(), session.Feed().Trace())
		cancel()
		if err != nil {
			a.logger.Warn("Run summary failed", zap.Error(err))
		}
		report.Summary = summary
	}
	session.Feed().PrintReport(a.stdout, report)

	if final == agent.StateFailed {
		return errRunFailed
	}
	return nil
}

// buildLocator returns nil when text-target resolution is disabled or has
// no credential; clicks on text then land on the region center.
func (a *app) buildLocator(apiKey string) llm.TextLocator {
	lc := a.cfg.Locator()
	if !lc.Enabled {
		return nil
	}
	name := config.ProviderName(lc.Provider)
	pc := a.cfg.Backend().Providers[name]
	if pc.APIKey == "" && name == config.ProviderName(a.cfg.Backend().Provider) {
		pc.APIKey = apiKey
	}

	loc, err := llm.NewVisionLocator(name, pc)
	if err != nil {
		a.logger.Warn("Text locator disabled", zap.String("provider", name), zap.Error(err))
		return nil
	}
	cached, err := llm.NewCachedLocator(loc, lc.CacheSize)
	if err != nil {
		return loc
	}
	return cached
}

type controller interface {
	Pause() error
	Resume() error
	Stop() error
}

// readControls maps stdin lines onto the session control surface until r
// is exhausted.
func readControls(r io.Reader, c controller, out io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var err error
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			continue
		case "p", "pause":
			err = c.Pause()
		case "r", "resume":
			err = c.Resume()
		case "s", "stop":
			err = c.Stop()
		default:
			fmt.Fprintln(out, "Commands: p (pause), r (resume), s (stop)")
			continue
		}
		if err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))
	return srv
}
