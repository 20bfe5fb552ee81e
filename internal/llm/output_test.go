package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		structured bool
	}{
		{"plain object", `{"keywords": ["go"]}`, true},
		{"fenced object", "```json\n{\"a\": 1}\n```", true},
		{"preamble before object", "Here is the JSON:\n{\"a\": {\"b\": 2}}\nThanks!", true},
		{"array", `["a", "b"]`, true},
		{"scalar string", `"just text"`, false},
		{"number", `42`, false},
		{"prose", "I could not produce JSON for this.", false},
		{"truncated", `{"a": [1, 2`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParseOutput(tt.input)
			assert.Equal(t, tt.structured, out.IsStructured())
			if !tt.structured {
				assert.Equal(t, Degraded, out.Kind)
			}
			assert.NotEmpty(t, out.Raw)
		})
	}
}

func TestOutput_Strings(t *testing.T) {
	out := ParseOutput(`{"keywords": ["go", 7, "", "sql"], "single": "aws", "many": ["a","b","c","d"]}`)

	assert.Equal(t, []string{"go", "7", "sql"}, out.Strings("keywords", 0))
	assert.Equal(t, []string{"aws"}, out.Strings("single", 0))
	assert.Equal(t, []string{"a", "b"}, out.Strings("many", 2))
	assert.Nil(t, out.Strings("missing", 0))
	assert.Equal(t, "aws", out.Text("single"))
}

func TestOutput_DegradedAccessors(t *testing.T) {
	out := ParseOutput("no json here")
	assert.Nil(t, out.Strings("keywords", 0))
	assert.Equal(t, "", out.Text("summary"))
	assert.Equal(t, "no json here", out.Raw)
	assert.Equal(t, "degraded", out.Kind.String())
}
