package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	turns   []Turn
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, turn Turn) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := len(p.turns)
	p.turns = append(p.turns, turn)
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return p.replies[len(p.replies)-1], nil
}

type conversationalProvider struct {
	scriptedProvider
	remembered []string
	resets     int
}

func (p *conversationalProvider) Remember(_ Turn, reply string) {
	p.remembered = append(p.remembered, reply)
}

func (p *conversationalProvider) Reset() { p.resets++ }

func TestClientNextActions(t *testing.T) {
	history := []action.Action{action.Click(0.1, 0.2), action.Write("hi")}

	t.Run("returns normalized actions", func(t *testing.T) {
		p := &scriptedProvider{replies: []string{`[{"operation":"click","x":0.75,"y":"0.25"}]`}}
		c := NewClient(p, zap.NewNop(), WithParseRetryDelay(0))

		got, err := c.NextActions(context.Background(), Request{Image: []byte("png"), Objective: "open settings", History: history})
		require.NoError(t, err)
		assert.Equal(t, []action.Action{{Operation: action.KindClick, X: "0.75", Y: "0.25"}}, got)

		require.Len(t, p.turns, 1)
		assert.Equal(t, "image/png", p.turns[0].MediaType)
		assert.Contains(t, p.turns[0].Prompt, "OBJECTIVE: open settings")
		assert.Contains(t, p.turns[0].Prompt, "1. click: click at (0.1, 0.2)")
		assert.Contains(t, p.turns[0].Prompt, `2. write: write "hi"`)
	})

	t.Run("malformed replies exhaust into a synthetic done", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		p := &scriptedProvider{replies: []string{"I am unsure.", "still unsure", "```nothing```"}}
		c := NewClient(p, zap.New(core), WithParseAttempts(3), WithParseRetryDelay(0))

		got, err := c.NextActions(context.Background(), Request{Objective: "x"})
		require.NoError(t, err)
		assert.Equal(t, []action.Action{action.Done(CouldNotDetermine)}, got)
		assert.Len(t, p.turns, 3)
		assert.Equal(t, 3, logs.FilterMessage("Unusable model reply").Len())
	})

	t.Run("an empty action list counts as malformed", func(t *testing.T) {
		p := &scriptedProvider{replies: []string{`[{"operation":"scroll"}]`, `[{"operation":"done","summary":"ok"}]`}}
		c := NewClient(p, nil, WithParseRetryDelay(0))

		got, err := c.NextActions(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, []action.Action{action.Done("ok")}, got)
		assert.Len(t, p.turns, 2)
	})

	t.Run("transport failures surface as backend errors", func(t *testing.T) {
		cause := errors.New("connection reset")
		p := &scriptedProvider{replies: []string{"[]"}, errs: []error{cause}}
		c := NewClient(p, nil)

		_, err := c.NextActions(context.Background(), Request{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBackend)
		assert.ErrorIs(t, err, cause)

		var be *BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "scripted", be.Provider)
	})

	t.Run("canceled retry wait is a backend error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &scriptedProvider{replies: []string{"nope"}}
		c := NewClient(p, nil, WithParseRetryDelay(50))

		_, err := c.NextActions(ctx, Request{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, p.turns, 1)
	})

	t.Run("conversational providers keep their own history", func(t *testing.T) {
		p := &conversationalProvider{scriptedProvider: scriptedProvider{replies: []string{"garbage", `{"operation":"press","keys":"enter"}`}}}
		c := NewClient(p, nil, WithParseRetryDelay(0))

		got, err := c.NextActions(context.Background(), Request{Objective: "go", History: history})
		require.NoError(t, err)
		assert.Equal(t, []string{"enter"}, got[0].Keys)

		assert.NotContains(t, p.turns[0].Prompt, "Previous actions")
		assert.Equal(t, []string{`{"operation":"press","keys":"enter"}`}, p.remembered)

		c.Reset()
		assert.Equal(t, 1, p.resets)
	})
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("search weather", 400, 300, nil)
	assert.Contains(t, prompt, "OBJECTIVE: search weather")
	assert.Contains(t, prompt, "400x300 pixel region")
	assert.NotContains(t, prompt, "Previous actions")
	assert.Contains(t, prompt, "achieve the objective: search weather?")

	assert.NotContains(t, BuildPrompt("search weather", 0, 0, nil), "pixel region")
}
