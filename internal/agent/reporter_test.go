package agent

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporterFeed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewReporter(zap.New(core))

	r.Log("starting", CategoryStatus)
	r.LogOperation(action.Write(strings.Repeat("x", 80)))
	r.Log(strings.Repeat("y", 600), CategoryLLM)
	r.Log("boom", CategoryError)

	require.Equal(t, 4, r.Len())
	entries := r.Entries(1)
	require.Len(t, entries, 3)
	assert.Equal(t, CategoryAction, entries[0].Category)
	assert.Equal(t, `Executing write "`+strings.Repeat("x", 50)+`..."`, entries[0].Message)
	assert.Len(t, []rune(entries[1].Message), 503)
	assert.Nil(t, r.Entries(10))

	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DebugLevel).Len())
	assert.Equal(t, "feed", logs.All()[0].LoggerName)
}

func TestReporterPrintReport(t *testing.T) {
	r := NewReporter(nil)
	r.Log("Starting objective", CategoryStatus)
	r.LogOperation(action.Press("ctrl", "s"))
	r.Log("just chatter", CategoryInfo)

	var buf bytes.Buffer
	r.PrintReport(&buf, Report{
		Objective: "save the file",
		Duration:  1500 * time.Millisecond,
		State:     StateCompleted,
		Summary:   "Saved.",
	})
	out := buf.String()

	assert.Contains(t, out, "===== EXECUTION REPORT =====")
	assert.Contains(t, out, "Objective: save the file")
	assert.Contains(t, out, "Duration: 1.5s")
	assert.Contains(t, out, "Final state: Completed (model reported the objective as done)")
	assert.Contains(t, out, "[ACTION] Executing press ctrl+s")
	assert.NotContains(t, out, "just chatter")
	assert.Contains(t, out, "--- LLM SUMMARY ---\nSaved.")

	buf.Reset()
	r.PrintReport(&buf, Report{Objective: "x", State: StateFailed})
	assert.NotContains(t, buf.String(), "LLM SUMMARY")
	assert.Contains(t, buf.String(), "iteration limit reached")
}
