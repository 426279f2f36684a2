package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/vendra/salescore/agent/contract"
)

// decodeJSON parses a model reply into T, tolerating the usual formatting
// noise: code fences, leading prose, trailing commentary. It looks for the
// outermost JSON object in the text.
func decodeJSON[T any](raw string) (T, error) {
	var out T
	text := stripFences(raw)

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return out, fmt.Errorf("%w: no JSON object in reply", contractx.ErrSchemaViolation)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return out, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return out, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		// drop the language tag line
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
