package action

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	KindClick Kind = "click"
	KindWrite Kind = "write"
	KindPress Kind = "press"
	KindDone  Kind = "done"
)

// Action is the canonical form of one model step. Build it with Normalize or
// the constructors below; the json tags match the wire format so a canonical
// list survives a round trip through Normalize unchanged.
//
// A click carries either a percent locator (X, Y as decimal strings) or a
// text target (Text).
type Action struct {
	Operation Kind     `json:"operation"`
	Thought   string   `json:"thought,omitempty"`
	X         string   `json:"x,omitempty"`
	Y         string   `json:"y,omitempty"`
	Text      string   `json:"text,omitempty"`
	Content   string   `json:"content,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

func Click(x, y float64) Action {
	return Action{Operation: KindClick, X: formatFloat(x), Y: formatFloat(y)}
}

func ClickText(text string) Action {
	return Action{Operation: KindClick, Text: text}
}

func Write(content string) Action {
	return Action{Operation: KindWrite, Content: content}
}

func Press(keys ...string) Action {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = NormalizeKey(k); k != "" {
			out = append(out, k)
		}
	}
	return Action{Operation: KindPress, Keys: out}
}

func Done(summary string) Action {
	return Action{Operation: KindDone, Summary: summary}
}

// TextTarget returns the text a click should be resolved against, if the
// click has no percent locator.
func (a Action) TextTarget() (string, bool) {
	if a.Operation != KindClick || a.X != "" || a.Y != "" {
		return "", false
	}
	return a.Text, a.Text != ""
}

// Describe renders the action for history prompts and the progress feed.
func (a Action) Describe() string {
	switch a.Operation {
	case KindClick:
		if text, ok := a.TextTarget(); ok {
			return fmt.Sprintf("click text %q", text)
		}
		return fmt.Sprintf("click at (%s, %s)", a.X, a.Y)
	case KindWrite:
		return fmt.Sprintf("write %q", Truncate(a.Content, 50))
	case KindPress:
		return "press " + strings.Join(a.Keys, "+")
	case KindDone:
		return "done: " + a.Summary
	default:
		return string(a.Operation)
	}
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
