package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
)

const (
	anthropicDefaultModel = "claude-3-opus-20240229"
	jsonOnlySuffix        = "Only output json format."
)

// AnthropicProvider keeps a text transcript like OpenAIProvider. Screenshots
// are downscaled to JPEG before upload.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	maxTurns  int

	mu         sync.Mutex
	transcript []anthropic.MessageParam
}

var (
	_ Provider       = (*AnthropicProvider)(nil)
	_ Conversational = (*AnthropicProvider)(nil)
)

func NewAnthropicProvider(cfg config.ProviderConfig, maxTurns int) (*AnthropicProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 3000
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		maxTurns:  maxTurns,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, turn Turn) (string, error) {
	img, err := prepareJPEG(turn.Image, maxImageSide, jpegQuality)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	messages := make([]anthropic.MessageParam, 0, len(p.transcript)+1)
	messages = append(messages, p.transcript...)
	p.mu.Unlock()

	messages = append(messages, anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64("image/jpeg", base64.StdEncoding.EncodeToString(img)),
		anthropic.NewTextBlock(turn.Prompt+"\n"+jsonOnlySuffix),
	))

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}
	return sb.String(), nil
}

func (p *AnthropicProvider) Remember(turn Turn, reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.transcript = append(p.transcript,
		anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Prompt)),
		anthropic.NewAssistantMessage(anthropic.NewTextBlock(reply)),
	)
	if p.maxTurns > 0 && len(p.transcript) > 2*p.maxTurns {
		p.transcript = p.transcript[len(p.transcript)-2*p.maxTurns:]
	}
}

func (p *AnthropicProvider) Reset() {
	p.mu.Lock()
	p.transcript = nil
	p.mu.Unlock()
}
