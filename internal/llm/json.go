package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSONArray extracts a JSON array from an LLM reply. It strips markdown
// code fences, then tries each bracket-balanced [...] substring in order and
// returns the first that decodes to an array holding at least one object, so
// citation brackets like [1] are passed over. Failing that it decodes the
// whole reply, accepting an array or an object carrying an "insights" array.
// It returns nil when nothing usable is found.
func ParseJSONArray(text string) []any {
	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	for start := strings.IndexByte(text, '['); start >= 0; {
		end := matchingBracket(text, start)
		if end < 0 {
			break
		}
		var arr []any
		if err := json.Unmarshal([]byte(text[start:end+1]), &arr); err == nil && hasObject(arr) {
			return arr
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}

	var whole any
	if err := json.Unmarshal([]byte(text), &whole); err != nil {
		return nil
	}
	switch v := whole.(type) {
	case []any:
		return v
	case map[string]any:
		if arr, ok := v["insights"].([]any); ok {
			return arr
		}
	}
	return nil
}

func hasObject(arr []any) bool {
	for _, v := range arr {
		if _, ok := v.(map[string]any); ok {
			return true
		}
	}
	return false
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return strings.TrimPrefix(text, "```")
	}
	return strings.Join(lines[1:endIdx], "\n")
}

// matchingBracket returns the index of the ']' closing the '[' at start,
// skipping brackets inside JSON strings, or -1 if it is never closed.
func matchingBracket(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
