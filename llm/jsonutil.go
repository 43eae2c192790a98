package llm

import (
	"regexp"
	"strings"
)

// LLMs verpacken JSON gern in Markdown-Codeblöcke oder stellen Text voran.
// Die Helfer hier schneiden das eigentliche JSON heraus, bevor es an
// encoding/json geht.
var (
	codeFencePattern     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONObject schneidet das erste JSON-Objekt aus einer Antwort.
// Gibt "" zurück, wenn keines gefunden wird.
func ExtractJSONObject(content string) string {
	return extract(content, '{', '}')
}

// ExtractJSONArray schneidet das erste JSON-Array aus einer Antwort.
func ExtractJSONArray(content string) string {
	return extract(content, '[', ']')
}

func extract(content string, opening, closing byte) string {
	if m := codeFencePattern.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	start := strings.IndexByte(content, opening)
	end := strings.LastIndexByte(content, closing)
	if start < 0 || end <= start {
		return ""
	}

	raw := content[start : end+1]
	// Trailing Commas vor } oder ] sind ein häufiges LLM-Artefakt
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
