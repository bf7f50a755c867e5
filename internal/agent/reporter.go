package agent

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
	"go.uber.org/zap"
)

type Category string

const (
	CategoryInfo    Category = "INFO"
	CategoryWarning Category = "WARNING"
	CategoryError   Category = "ERROR"
	CategorySuccess Category = "SUCCESS"
	CategoryTrace   Category = "TRACE"
	CategoryThought Category = "THOUGHT"
	CategoryAction  Category = "ACTION"
	CategoryLLM     Category = "LLM"
	CategoryStatus  Category = "STATUS"
)

const (
	writePreview = 50
	llmPreview   = 500
)

// Logger is the only channel through which the loop reports progress.
type Logger interface {
	Log(message string, category Category)
	LogOperation(a action.Action)
}

type Entry struct {
	Time     time.Time
	Category Category
	Message  string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05"), e.Category, e.Message)
}

// Reporter is an append-only feed. The loop writes, the foreground reads
// with Entries; entries are never modified once appended.
type Reporter struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*Reporter)(nil)

func NewReporter(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger.Named("feed"), now: time.Now}
}

func (r *Reporter) Log(message string, category Category) {
	if category == CategoryLLM {
		message = action.Truncate(message, llmPreview)
	}
	e := Entry{Time: r.now(), Category: category, Message: message}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	field := zap.String("category", string(category))
	switch category {
	case CategoryError:
		r.logger.Error(message, field)
	case CategoryWarning:
		r.logger.Warn(message, field)
	case CategoryTrace, CategoryLLM:
		r.logger.Debug(message, field)
	default:
		r.logger.Info(message, field)
	}
}

func (r *Reporter) LogOperation(a action.Action) {
	r.Log("Executing "+a.Describe(), CategoryAction)
}

// Entries returns a copy of everything logged from index from onwards.
func (r *Reporter) Entries(from int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if from < 0 {
		from = 0
	}
	if from >= len(r.entries) {
		return nil
	}
	out := make([]Entry, len(r.entries)-from)
	copy(out, r.entries[from:])
	return out
}

func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Trace is the action and status lines of the run, in order.
func (r *Reporter) Trace() []string {
	var lines []string
	for _, e := range r.Entries(0) {
		switch e.Category {
		case CategoryAction, CategoryStatus, CategoryError:
			lines = append(lines, fmt.Sprintf("[%s] %s", e.Category, e.Message))
		}
	}
	return lines
}

type Report struct {
	Objective string
	Duration  time.Duration
	State     State
	Summary   string
}

func (r *Reporter) PrintReport(w io.Writer, rep Report) {
	fmt.Fprintln(w, "\n===== EXECUTION REPORT =====")
	fmt.Fprintf(w, "Objective: %s\n", rep.Objective)
	fmt.Fprintf(w, "Duration: %s\n", rep.Duration.Truncate(time.Millisecond))
	fmt.Fprintf(w, "Final state: %s (%s)\n\n", rep.State, humanizeReason(rep.State))

	fmt.Fprintln(w, "--- TRACE ---")
	for _, line := range r.Trace() {
		fmt.Fprintln(w, line)
	}

	if s := strings.TrimSpace(rep.Summary); s != "" {
		fmt.Fprintln(w, "\n--- LLM SUMMARY ---")
		fmt.Fprintln(w, s)
	}
	fmt.Fprintln(w, "===== END OF REPORT =====")
}
