package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSON decodes a model response into dst, salvaging common wrappings:
// raw JSON, JSON inside a fenced code block (```json … ``` or ``` … ```),
// or JSON with leading/trailing prose. On failure it returns a *ParseError
// carrying the full raw text; it never guesses values.
func ParseJSON(text string, dst any) error {
	candidate := ExtractJSON(text)
	if err := json.Unmarshal([]byte(candidate), dst); err != nil {
		return &ParseError{Raw: text, Err: err}
	}
	return nil
}

// ExtractJSON returns the most plausible JSON payload inside text: the body
// of the outermost fenced code block if present, otherwise the span from the
// first opening brace/bracket to the matching last closing one, otherwise
// the trimmed text itself.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)

	if body, ok := stripFence(s); ok {
		s = strings.TrimSpace(body)
	}

	// Already parseable? Done.
	if json.Valid([]byte(s)) {
		return s
	}

	// Leading/trailing prose: slice to the outermost object or array.
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}
	return s
}

// stripFence removes the outermost ``` fence (with optional language tag).
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	rest := s[3:]
	// Drop the language tag (e.g. "json") up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	closing := strings.LastIndex(rest, "```")
	if closing < 0 {
		return "", false
	}
	return rest[:closing], true
}
