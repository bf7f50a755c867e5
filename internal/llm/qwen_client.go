package llm

import (
	"context"

	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

const (
	qwenBaseURL      = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	qwenDefaultModel = "qwen-vl-plus"
)

// QwenProvider talks to DashScope's OpenAI-compatible endpoint. It is
// stateless; previous actions reach the model through the prompt.
type QwenProvider struct {
	*chatCompleter
}

var _ Provider = (*QwenProvider)(nil)

func NewQwenProvider(cfg config.ProviderConfig) (*QwenProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = qwenBaseURL
	}
	cc, err := newChatCompleter(cfg, qwenDefaultModel)
	if err != nil {
		return nil, err
	}
	return &QwenProvider{chatCompleter: cc}, nil
}

func (p *QwenProvider) Name() string { return "qwen" }

func (p *QwenProvider) Complete(ctx context.Context, turn Turn) (string, error) {
	return p.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		visionMessage(turn),
	})
}
