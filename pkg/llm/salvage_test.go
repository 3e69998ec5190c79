package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"surrounding whitespace", "  \n {\"a\":1} \n", `{"a":1}`},
		{"fenced", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced with language", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Here is the result: {"a":1} hope it helps`, `{"a":1}`},
		{"prose around array", `The list: [1,2,3].`, `[1,2,3]`},
		{"nested braces", `answer {"a":{"b":2}} done`, `{"a":{"b":2}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestParseJSONIntoStruct(t *testing.T) {
	var out struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}
	err := ParseJSON("```json\n{\"name\":\"acme\",\"score\":0.7}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "acme", out.Name)
	assert.InDelta(t, 0.7, out.Score, 1e-9)
}

func TestParseJSONFailureCarriesRawHead(t *testing.T) {
	raw := "I cannot produce JSON because " + strings.Repeat("reasons ", 50)
	var out map[string]any
	err := ParseJSON(raw, &out)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.True(t, strings.HasPrefix(raw, pe.Head()))
	assert.LessOrEqual(t, len(pe.Head()), rawHeadLimit)
}
