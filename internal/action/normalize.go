package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/zap"
)

var ErrMalformedResponse = errors.New("malformed model response")

// DefaultSummary is used for a done record without a summary.
const DefaultSummary = "Task completed"

const fence = "```"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Normalize converts raw model output into canonical actions. Records with an
// unknown operation are dropped with a warning; only a response that holds no
// list or object at all is reported as ErrMalformedResponse.
func Normalize(raw string, logger *zap.Logger) ([]Action, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v, err := decode(stripFence(raw))
	if err != nil {
		return nil, err
	}

	var records []any
	switch t := v.(type) {
	case []any:
		records = t
	case map[string]any:
		records = []any{t}
	default:
		return nil, fmt.Errorf("%w: expected a list of actions, got %T", ErrMalformedResponse, v)
	}

	out := make([]Action, 0, len(records))
	for i, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			logger.Warn("Dropping non-object action record", zap.Int("index", i))
			continue
		}
		a, ok := normalizeRecord(m, logger)
		if !ok {
			logger.Warn("Dropping action with unknown operation",
				zap.Int("index", i),
				zap.String("operation", stringify(m["operation"])),
			)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func normalizeRecord(m map[string]any, logger *zap.Logger) (Action, bool) {
	a := Action{Thought: stringify(m["thought"])}

	switch Kind(strings.ToLower(strings.TrimSpace(stringify(m["operation"])))) {
	case KindClick:
		a.Operation = KindClick
		x, y := stringify(m["x"]), stringify(m["y"])
		if x != "" || y != "" {
			// A missing axis lands on the middle of the region.
			a.X, a.Y = orCenter(x), orCenter(y)
			return a, true
		}
		for _, field := range []string{"target", "text"} {
			if text := stringify(m[field]); text != "" {
				a.Text = text
				return a, true
			}
		}
		logger.Warn("Click without coordinates or target, using region center")
		a.X, a.Y = formatFloat(0.5), formatFloat(0.5)
	case KindWrite:
		a.Operation = KindWrite
		if s, ok := m["content"].(string); ok {
			a.Content = s
		} else {
			a.Content = stringify(m["content"])
		}
	case KindPress:
		a.Operation = KindPress
		a.Keys = normalizeKeys(m["keys"])
	case KindDone:
		a.Operation = KindDone
		a.Summary = stringify(m["summary"])
		if a.Summary == "" {
			a.Summary = DefaultSummary
		}
	default:
		return Action{}, false
	}
	return a, true
}

func orCenter(v string) string {
	if v == "" {
		return formatFloat(0.5)
	}
	return v
}

func normalizeKeys(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
	case []any:
		for _, k := range t {
			raw = append(raw, stringify(k))
		}
	default:
		raw = []string{stringify(t)}
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = NormalizeKey(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return keys
}

// stripFence returns the content of the first fenced block, or the trimmed
// text when there is none. An unterminated fence runs to the end.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}

	body := s[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLanguageTag(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	return !strings.ContainsAny(s, " \t[]{}\"")
}

func decode(text string) (any, error) {
	if v, err := strict(text); err == nil {
		return v, nil
	}
	// Models sometimes wrap the payload in prose.
	if sub, ok := outermostStructure(text); ok {
		if v, err := strict(sub); err == nil {
			return v, nil
		}
		if v, err := lenient(sub); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, Truncate(text, 120))
}

func strict(text string) (any, error) {
	var v any
	if err := json.UnmarshalFromString(text, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// lenient accepts the single quotes and trailing commas models tend to emit.
// The json5 scanner can panic on input that is not JSON5 at all.
func lenient(text string) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, err = nil, fmt.Errorf("%w: json5: %v", ErrMalformedResponse, rec)
		}
	}()
	if err := json5.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func outermostStructure(text string) (string, bool) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", false
	}
	closer := "]"
	if text[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return formatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
