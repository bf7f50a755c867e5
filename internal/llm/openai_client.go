package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// chatCompleter is the go-openai plumbing shared by every OpenAI-compatible
// endpoint (OpenAI itself and DashScope's compatible mode).
type chatCompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func newChatCompleter(cfg config.ProviderConfig, defaultModel string) (*chatCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &chatCompleter{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *chatCompleter) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Summarize asks the model for a short review of a finished run.
func (c *chatCompleter) Summarize(ctx context.Context, objective, outcome string, trace []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("OBJECTIVE: " + objective + "\n")
	sb.WriteString("OUTCOME: " + outcome + "\n\nTRACE:\n")
	sb.WriteString(strings.Join(trace, "\n"))

	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: sb.String()},
	})
}

func visionMessage(turn Turn) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: turn.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL(turn.MediaType, turn.Image),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		},
	}
}

func dataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// OpenAIProvider keeps a transcript of earlier turns. Stored turns are text
// only; the screenshot travels with the current turn.
type OpenAIProvider struct {
	*chatCompleter
	maxTurns int

	mu         sync.Mutex
	transcript []openai.ChatCompletionMessage
}

var (
	_ Provider       = (*OpenAIProvider)(nil)
	_ Conversational = (*OpenAIProvider)(nil)
)

func NewOpenAIProvider(cfg config.ProviderConfig, maxTurns int) (*OpenAIProvider, error) {
	cc, err := newChatCompleter(cfg, openai.GPT4o)
	if err != nil {
		return nil, err
	}
	return &OpenAIProvider{chatCompleter: cc, maxTurns: maxTurns}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, turn Turn) (string, error) {
	p.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, 0, len(p.transcript)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	messages = append(messages, p.transcript...)
	p.mu.Unlock()

	return p.complete(ctx, append(messages, visionMessage(turn)))
}

func (p *OpenAIProvider) Remember(turn Turn, reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.transcript = append(p.transcript,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Prompt},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	)
	if p.maxTurns > 0 && len(p.transcript) > 2*p.maxTurns {
		p.transcript = p.transcript[len(p.transcript)-2*p.maxTurns:]
	}
}

func (p *OpenAIProvider) Reset() {
	p.mu.Lock()
	p.transcript = nil
	p.mu.Unlock()
}

func (p *OpenAIProvider) transcriptLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transcript)
}
