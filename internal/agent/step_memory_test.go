package agent

import (
	"testing"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/stretchr/testify/assert"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(5)
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		h.Add(action.Write(s))
	}

	got := h.Actions()
	assert.Len(t, got, 5)
	assert.Equal(t, "c", got[0].Content)
	assert.Equal(t, "g", got[4].Content)

	got[0].Content = "mutated"
	assert.Equal(t, "c", h.Actions()[0].Content)
}

func TestHistoryRepeats(t *testing.T) {
	h := NewHistory(0)
	assert.Nil(t, h.Actions())

	h.Add(action.Press("enter"))
	h.Add(action.Press("Return"))
	h.Add(action.Press("enter"))
	assert.Equal(t, 3, h.Repeats())

	h.Add(action.Click(0.5, 0.5))
	assert.Equal(t, 1, h.Repeats())
	assert.Equal(t, 4, h.Len())
}
