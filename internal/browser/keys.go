package browser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/chromedp/cdproto/input"
)

// keyDef describes one key the way DOM keyboard events name it.
type keyDef struct {
	Key      string
	Code     string
	KeyCode  int64
	Modifier input.Modifier
}

// Printable reports whether the key produces text on its own.
func (k keyDef) Printable() bool {
	return len([]rune(k.Key)) == 1
}

var namedKeys = map[string]keyDef{
	"enter":     {Key: "Enter", Code: "Enter", KeyCode: 13},
	"tab":       {Key: "Tab", Code: "Tab", KeyCode: 9},
	"esc":       {Key: "Escape", Code: "Escape", KeyCode: 27},
	"space":     {Key: " ", Code: "Space", KeyCode: 32},
	"backspace": {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"delete":    {Key: "Delete", Code: "Delete", KeyCode: 46},
	"up":        {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"down":      {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"left":      {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"right":     {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"home":      {Key: "Home", Code: "Home", KeyCode: 36},
	"end":       {Key: "End", Code: "End", KeyCode: 35},
	"pageup":    {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"pagedown":  {Key: "PageDown", Code: "PageDown", KeyCode: 34},

	"ctrl":  {Key: "Control", Code: "ControlLeft", KeyCode: 17, Modifier: input.ModifierCtrl},
	"alt":   {Key: "Alt", Code: "AltLeft", KeyCode: 18, Modifier: input.ModifierAlt},
	"shift": {Key: "Shift", Code: "ShiftLeft", KeyCode: 16, Modifier: input.ModifierShift},
	"win":   {Key: "Meta", Code: "MetaLeft", KeyCode: 91, Modifier: input.ModifierMeta},
}

func lookupKey(name string) keyDef {
	name = strings.ToLower(strings.TrimSpace(name))
	if def, ok := namedKeys[name]; ok {
		return def
	}

	if r := []rune(name); len(r) == 1 {
		upper := unicode.ToUpper(r[0])
		switch {
		case r[0] >= 'a' && r[0] <= 'z':
			return keyDef{Key: name, Code: "Key" + string(upper), KeyCode: int64(upper)}
		case r[0] >= '0' && r[0] <= '9':
			return keyDef{Key: name, Code: "Digit" + name, KeyCode: int64(r[0])}
		default:
			return keyDef{Key: name}
		}
	}

	if strings.HasPrefix(name, "f") {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 12 {
			label := "F" + strconv.Itoa(n)
			return keyDef{Key: label, Code: label, KeyCode: int64(111 + n)}
		}
	}
	return keyDef{Key: name, Code: name}
}
