package llm

import (
	"fmt"
	"strings"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
)

const systemPrompt = `
You operate a computer to complete a SPECIFIC objective. You see a SCREENSHOT of one
region of the screen, not the whole display, and you can only act on what it shows.

AVAILABLE ACTIONS (JSON, one object per action):
1. click: {"thought": "...", "operation": "click", "x": "0.5", "y": "0.5"}
   x and y are decimals in [0,1] relative to the CURRENT SCREENSHOT.
   If you cannot estimate a position, give the visible label instead:
   {"thought": "...", "operation": "click", "text": "Sign in"}
2. write: {"thought": "...", "operation": "write", "content": "text to type"}
3. press: {"thought": "...", "operation": "press", "keys": ["ctrl", "a"]}
   Use plain key names such as "enter", "tab", "esc", "ctrl", "alt", "shift", "win".
4. done:  {"thought": "...", "operation": "done", "summary": "what was achieved"}

RULES:
- Answer with a JSON array holding a SINGLE action for right now.
- No prose and no code fences around the JSON.
- Use done as soon as the objective is visibly achieved.
`

const summarySystemPrompt = `
You review the trace of a desktop automation run. In a few sentences say whether the
objective was achieved, what the agent did, where it got stuck or repeated itself,
and what would help next time.
`

// BuildPrompt renders the per-turn user prompt. History is omitted for
// providers that keep their own transcript.
func BuildPrompt(objective string, width, height int, history []action.Action) string {
	var sb strings.Builder
	sb.WriteString("OBJECTIVE: " + objective + "\n")
	if width > 0 && height > 0 {
		fmt.Fprintf(&sb, "The screenshot shows a %dx%d pixel region of the screen.\n", width, height)
	}

	if len(history) > 0 {
		sb.WriteString("\nPrevious actions:\n")
		for i, a := range history {
			fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, a.Operation, a.Describe())
		}
	}

	sb.WriteString("\nBased on the current screenshot, what is the next step to achieve the objective: ")
	sb.WriteString(objective)
	sb.WriteString("?\n")
	return sb.String()
}
