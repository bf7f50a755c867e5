package llm

import (
	"context"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"go.uber.org/zap"
)

// Client turns a Provider into a Backend: it builds the prompt, normalizes
// the reply and retries replies that do not parse.
type Client struct {
	provider   Provider
	logger     *zap.Logger
	attempts   int
	retryDelay time.Duration
}

var _ Backend = (*Client)(nil)

type ClientOption func(*Client)

func WithParseAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithParseRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

func NewClient(p Provider, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		provider:   p,
		logger:     logger.Named("llm." + p.Name()),
		attempts:   3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.provider.Name() }

// NextActions returns at least one action. Transport failures come back as
// *BackendError; replies that stay unusable after every attempt turn into a
// synthetic done.
func (c *Client) NextActions(ctx context.Context, req Request) ([]action.Action, error) {
	history := req.History
	if _, ok := c.provider.(Conversational); ok {
		history = nil
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	turn := Turn{
		Prompt:    BuildPrompt(req.Objective, req.RegionWidth, req.RegionHeight, history),
		Image:     req.Image,
		MediaType: mediaType,
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		start := time.Now()
		reply, err := c.provider.Complete(ctx, turn)
		if err != nil {
			return nil, &BackendError{Provider: c.provider.Name(), Cause: err}
		}
		c.logger.Debug("Model replied",
			zap.Int("attempt", attempt),
			zap.Duration("duration", time.Since(start)),
			zap.String("reply", action.Truncate(reply, 500)),
		)

		actions, err := action.Normalize(reply, c.logger)
		if err == nil && len(actions) > 0 {
			if conv, ok := c.provider.(Conversational); ok {
				conv.Remember(turn, reply)
			}
			return actions, nil
		}

		c.logger.Warn("Unusable model reply",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.attempts),
			zap.Error(err),
		)
		if attempt < c.attempts {
			if err := sleepCtx(ctx, c.retryDelay); err != nil {
				return nil, &BackendError{Provider: c.provider.Name(), Cause: err}
			}
		}
	}

	c.logger.Warn("Giving up on model reply, returning synthetic done")
	return []action.Action{action.Done(CouldNotDetermine)}, nil
}

// Reset drops any transcript kept by the provider.
func (c *Client) Reset() {
	if conv, ok := c.provider.(Conversational); ok {
		conv.Reset()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
