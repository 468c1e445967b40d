package rag

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ExtractJSON pulls a JSON object out of free-form model output.
//
// The trimmed text is parsed as-is first. Failing that, Markdown code fences
// and newlines are removed and the span from the first '{' to the last '}'
// is parsed. Anything else yields nil.
func ExtractJSON(text string) map[string]any {
	text = strings.TrimSpace(text)
	if obj, ok := parseObject(text); ok {
		return obj
	}

	cleaned := strings.NewReplacer("```json", "", "```JSON", "", "```", "", "\r", "", "\n", "").Replace(text)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		slog.Debug("no JSON object in model output", "len", len(text))
		return nil
	}

	obj, ok := parseObject(cleaned[start : end+1])
	if !ok {
		slog.Debug("unparseable JSON object in model output", "len", len(text))
		return nil
	}
	return obj
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
