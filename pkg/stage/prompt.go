package stage

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"
)

// TruncatedMarker is appended wherever a variable or prompt was cut to fit
// its budget.
const TruncatedMarker = "...(truncated)"

// TruncateVar cuts value to at most budget bytes, appending the marker when
// anything was removed. The cut backs up to a rune boundary so the result
// stays valid UTF-8. Non-positive budgets disable truncation.
func TruncateVar(value string, budget int) string {
	if budget <= 0 || len(value) <= budget {
		return value
	}
	return value[:runeCut(value, budget)] + TruncatedMarker
}

// runeCut backs a byte offset up to the nearest rune boundary.
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

// RenderPrompt renders a stage's template with its variables, each truncated
// to its declared budget, then enforces the global prompt ceiling.
func RenderPrompt(stageName, tmpl string, vars []Var, maxChars int) (string, error) {
	data := make(map[string]string, len(vars))
	for _, v := range vars {
		data[v.Name] = TruncateVar(v.Value, v.Budget)
	}

	t, err := template.New(stageName).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", stageName, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", stageName, err)
	}
	prompt := sb.String()
	if maxChars > 0 && len(prompt) > maxChars {
		prompt = prompt[:runeCut(prompt, maxChars-len(TruncatedMarker))] + TruncatedMarker
	}
	return prompt, nil
}
