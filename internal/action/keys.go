package action

import "strings"

var keySynonyms = map[string]string{
	"windows": "win",
	"win":     "win",
	"enter":   "enter",
	"return":  "enter",
	"回车":      "enter",
	"ctrl":    "ctrl",
	"control": "ctrl",
	"控制":      "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"选项":      "alt",
	"备选":      "alt",
	"shift":   "shift",
	"上档":      "shift",
	"esc":     "esc",
	"escape":  "esc",
	"退出":      "esc",
	"tab":     "tab",
	"制表":      "tab",
}

// NormalizeKey lower-cases a key name, drops the localized "键" suffix and
// maps known synonyms. Unknown names pass through.
func NormalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.TrimSpace(strings.TrimSuffix(k, "键"))
	if v, ok := keySynonyms[k]; ok {
		return v
	}
	return k
}
