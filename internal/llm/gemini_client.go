package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-1.5-pro"

// GeminiProvider sends the system instruction and screenshot on every call
// and keeps no transcript.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, cfg config.ProviderConfig) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiProvider{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, turn Turn) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: turn.Prompt},
			{InlineData: &genai.Blob{MIMEType: turn.MediaType, Data: turn.Image}},
		},
	}}

	conf := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	}
	if p.maxTokens > 0 {
		conf.MaxOutputTokens = int32(min(p.maxTokens, math.MaxInt32))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, conf)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response")
	}
	return sb.String(), nil
}
