package llm

import (
	"context"
	"fmt"

	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"go.uber.org/zap"
)

// NewProvider builds the provider named by id ("openai", "anthropic"/"claude",
// "gemini", "qwen").
func NewProvider(ctx context.Context, id string, cfg config.ProviderConfig, maxTurns int) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch name := config.ProviderName(id); name {
	case "openai":
		p, err = NewOpenAIProvider(cfg, maxTurns)
	case "anthropic":
		p, err = NewAnthropicProvider(cfg, maxTurns)
	case "gemini":
		p, err = NewGeminiProvider(ctx, cfg)
	case "qwen":
		p, err = NewQwenProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ProviderName(id), err)
	}
	return p, nil
}

// NewBackend builds the Client for the provider selected in cfg. apiKey, when
// non-empty, overrides the configured credential.
func NewBackend(ctx context.Context, cfg config.BackendConfig, apiKey string, logger *zap.Logger) (*Client, error) {
	pc := cfg.Selected()
	if apiKey != "" {
		pc.APIKey = apiKey
	}
	p, err := NewProvider(ctx, cfg.Provider, pc, cfg.MaxTranscriptTurns)
	if err != nil {
		return nil, err
	}
	return NewClient(p, logger,
		WithParseAttempts(cfg.ParseAttempts),
		WithParseRetryDelay(cfg.ParseRetryDelay),
	), nil
}

// Summarizer is implemented by the OpenAI-compatible providers.
type Summarizer interface {
	Summarize(ctx context.Context, objective, outcome string, trace []string) (string, error)
}

// SummarizerOf returns the backend's summarizer, if its provider has one.
func SummarizerOf(b Backend) (Summarizer, bool) {
	c, ok := b.(*Client)
	if !ok {
		return nil, false
	}
	s, ok := c.provider.(Summarizer)
	return s, ok
}
