package agent

import "github.com/nbenliogludev/go-region-ai-agent/internal/action"

// History keeps the most recent executed actions for one run and counts how
// often the latest one was repeated back to back.
type History struct {
	actions []action.Action
	max     int

	lastKey string
	repeats int
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 5
	}
	return &History{max: max}
}

func (h *History) Add(a action.Action) {
	h.actions = append(h.actions, a)
	if len(h.actions) > h.max {
		h.actions = h.actions[len(h.actions)-h.max:]
	}

	key := a.Describe()
	if key == h.lastKey {
		h.repeats++
	} else {
		h.lastKey = key
		h.repeats = 1
	}
}

// Actions returns a copy, oldest first.
func (h *History) Actions() []action.Action {
	if len(h.actions) == 0 {
		return nil
	}
	out := make([]action.Action, len(h.actions))
	copy(out, h.actions)
	return out
}

func (h *History) Len() int { return len(h.actions) }

// Repeats is how many times in a row the latest action has been added.
func (h *History) Repeats() int { return h.repeats }
