package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/nbenliogludev/go-region-ai-agent/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type capturedRequests struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

func (c *capturedRequests) record(t *testing.T, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, r.URL.Path)
	c.bodies = append(c.bodies, decoded)
}

func (c *capturedRequests) body(i int) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodies[i]
}

func openAIServer(t *testing.T, reply string, captured *capturedRequests) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIProvider(t *testing.T) {
	captured := &capturedRequests{}
	server := openAIServer(t, `[{"operation":"write","content":"hello"}]`, captured)

	p, err := NewOpenAIProvider(config.ProviderConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Timeout: 5 * time.Second}, 1)
	require.NoError(t, err)
	c := NewClient(p, zap.NewNop())

	req := Request{Image: testPNG(t, 4, 4), Objective: "type hello"}
	for i := 0; i < 3; i++ {
		got, err := c.NextActions(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "hello", got[0].Content)
	}

	assert.Equal(t, "/v1/chat/completions", captured.paths[0])
	first := captured.body(0)
	assert.Equal(t, "gpt-4o", first["model"])
	messages := first["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(imageURL, "data:image/png;base64,"))

	// The transcript is capped at one remembered turn (user + assistant).
	third := captured.body(2)
	assert.Len(t, third["messages"].([]any), 4)
	assert.Equal(t, 2, p.transcriptLen())

	c.Reset()
	assert.Equal(t, 0, p.transcriptLen())
}

func TestQwenProviderIsStateless(t *testing.T) {
	captured := &capturedRequests{}
	server := openAIServer(t, "```json\n[{\"operation\":\"done\",\"summary\":\"found it\"}]\n```", captured)

	p, err := NewQwenProvider(config.ProviderConfig{APIKey: "sk-dash", BaseURL: server.URL})
	require.NoError(t, err)
	c := NewClient(p, nil)

	for i := 0; i < 2; i++ {
		got, err := c.NextActions(context.Background(), Request{
			Image:     testPNG(t, 2, 2),
			Objective: "find it",
			History:   []action.Action{action.Press("tab")},
		})
		require.NoError(t, err)
		assert.Equal(t, "found it", got[0].Summary)
	}

	second := captured.body(1)
	assert.Equal(t, "qwen-vl-plus", second["model"])
	messages := second["messages"].([]any)
	require.Len(t, messages, 2)
	parts := messages[1].(map[string]any)["content"].([]any)
	assert.Contains(t, parts[0].(map[string]any)["text"], "1. press: press tab")
}

func TestAnthropicProvider(t *testing.T) {
	captured := &capturedRequests{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.record(t, r)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-opus-20240229",
			"content":[{"type":"text","text":"[{\"operation\":\"press\",\"keys\":[\"ctrl\",\"a\"]}]"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)
	}))
	t.Cleanup(server.Close)

	p, err := NewAnthropicProvider(config.ProviderConfig{APIKey: "sk-ant", BaseURL: server.URL}, 10)
	require.NoError(t, err)
	c := NewClient(p, nil)

	got, err := c.NextActions(context.Background(), Request{Image: testPNG(t, 2000, 1000), Objective: "select all"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ctrl", "a"}, got[0].Keys)

	_, err = c.NextActions(context.Background(), Request{Image: testPNG(t, 10, 10), Objective: "select all"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(captured.paths[0], "/v1/messages"))
	first := captured.body(0)
	assert.EqualValues(t, 3000, first["max_tokens"])

	content := first["messages"].([]any)[0].(map[string]any)["content"].([]any)
	source := content[0].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "image/jpeg", source["media_type"])
	assert.Contains(t, content[1].(map[string]any)["text"], jsonOnlySuffix)

	// Second call replays the first turn as text.
	assert.Len(t, captured.body(1)["messages"].([]any), 3)
}

func TestGeminiProvider(t *testing.T) {
	captured := &capturedRequests{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.record(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"operation\":\"click\","},{"text":"\"text\":\"OK\"}]"}]}}]}`)
	}))
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(context.Background(), config.ProviderConfig{APIKey: "g-key", BaseURL: server.URL})
	require.NoError(t, err)
	c := NewClient(p, nil)

	got, err := c.NextActions(context.Background(), Request{Image: testPNG(t, 2, 2), Objective: "confirm"})
	require.NoError(t, err)
	text, ok := got[0].TextTarget()
	assert.True(t, ok)
	assert.Equal(t, "OK", text)

	assert.Contains(t, captured.paths[0], "gemini-1.5-pro:generateContent")
	assert.Contains(t, captured.body(0), "systemInstruction")
}

func TestPrepareJPEG(t *testing.T) {
	out, err := prepareJPEG(testPNG(t, 2560, 1440), maxImageSide, jpegQuality)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())

	out, err = prepareJPEG(testPNG(t, 300, 200), maxImageSide, jpegQuality)
	require.NoError(t, err)
	img, err = jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())

	_, err = prepareJPEG([]byte("not an image"), maxImageSide, jpegQuality)
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	for _, id := range []string{"openai", "claude", "anthropic", "gemini", "qwen"} {
		_, err := NewProvider(ctx, id, config.ProviderConfig{}, 0)
		assert.ErrorIs(t, err, ErrMissingCredential, id)
	}

	_, err := NewProvider(ctx, "llama", config.ProviderConfig{APIKey: "x"}, 0)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	p, err := NewProvider(ctx, "Claude", config.ProviderConfig{APIKey: "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestNewBackendUsesOverrideKey(t *testing.T) {
	cfg := config.NewDefaultConfig().Backend()

	_, err := NewBackend(context.Background(), cfg, "", nil)
	assert.ErrorIs(t, err, ErrMissingCredential)

	b, err := NewBackend(context.Background(), cfg, "sk-flag", nil)
	require.NoError(t, err)
	assert.Equal(t, "qwen", b.Name())

	_, ok := SummarizerOf(b)
	assert.True(t, ok)
}
