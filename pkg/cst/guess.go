package cst

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// enryAliases maps enry's display names onto grammar registry keys where
// the two disagree.
var enryAliases = map[string]string{
	"c++": "cpp",
	"c#":  "c_sharp",
}

// GuessLanguage detects the grammar registry key for a file from its name
// and content. Returns "" when the language is unknown or has no grammar.
func GuessLanguage(filename string, content []byte) string {
	detected := enry.GetLanguage(path.Base(filename), content)
	if detected == "" {
		return ""
	}

	key := strings.ReplaceAll(strings.ToLower(detected), " ", "_")
	if alias, ok := enryAliases[key]; ok {
		key = alias
	}

	if _, ok := languageFuncs[key]; !ok {
		return ""
	}

	return key
}
