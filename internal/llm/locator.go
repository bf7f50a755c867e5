package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

var ErrTextNotFound = errors.New("text not found on screenshot")

// TextLocator resolves a visible label to a percent point on a screenshot.
type TextLocator interface {
	Locate(ctx context.Context, image []byte, text string) (float64, float64, error)
}

const locatePrompt = `Find the on-screen element whose visible text is %q.
Reply with JSON only: {"found": true, "x": 0.5, "y": 0.5} where x and y are the
element center as decimals in [0,1] relative to this screenshot, or {"found": false}.`

// VisionLocator asks an OpenAI-compatible vision model where a label is.
type VisionLocator struct {
	cc *chatCompleter
}

var _ TextLocator = (*VisionLocator)(nil)

// NewVisionLocator builds a locator on the openai or qwen provider settings.
func NewVisionLocator(provider string, cfg config.ProviderConfig) (*VisionLocator, error) {
	defaultModel := openai.GPT4o
	if config.ProviderName(provider) == "qwen" {
		defaultModel = qwenDefaultModel
		if cfg.BaseURL == "" {
			cfg.BaseURL = qwenBaseURL
		}
	}
	cc, err := newChatCompleter(cfg, defaultModel)
	if err != nil {
		return nil, err
	}
	return &VisionLocator{cc: cc}, nil
}

func (l *VisionLocator) Locate(ctx context.Context, image []byte, text string) (float64, float64, error) {
	reply, err := l.cc.complete(ctx, []openai.ChatCompletionMessage{
		visionMessage(Turn{Prompt: fmt.Sprintf(locatePrompt, text), Image: image, MediaType: "image/png"}),
	})
	if err != nil {
		return 0, 0, err
	}
	return parseLocation(reply)
}

func parseLocation(reply string) (float64, float64, error) {
	body := strings.Trim(strings.TrimSpace(reply), "`")
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var out struct {
		Found bool    `json:"found"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(body, &out); err != nil {
		return 0, 0, fmt.Errorf("parse locator reply: %w", err)
	}
	if !out.Found || out.X < 0 || out.X > 1 || out.Y < 0 || out.Y > 1 {
		return 0, 0, ErrTextNotFound
	}
	return out.X, out.Y, nil
}

type point struct{ x, y float64 }

// CachedLocator memoizes hits per (screenshot, text). Misses are not cached.
type CachedLocator struct {
	next  TextLocator
	cache *lru.Cache[string, point]
}

var _ TextLocator = (*CachedLocator)(nil)

func NewCachedLocator(next TextLocator, size int) (*CachedLocator, error) {
	cache, err := lru.New[string, point](size)
	if err != nil {
		return nil, err
	}
	return &CachedLocator{next: next, cache: cache}, nil
}

func (c *CachedLocator) Locate(ctx context.Context, image []byte, text string) (float64, float64, error) {
	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:]) + "|" + text

	if p, ok := c.cache.Get(key); ok {
		return p.x, p.y, nil
	}
	x, y, err := c.next.Locate(ctx, image, text)
	if err != nil {
		return 0, 0, err
	}
	c.cache.Add(key, point{x, y})
	return x, y, nil
}
