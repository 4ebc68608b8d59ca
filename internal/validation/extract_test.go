package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "bare object", reply: `  {"a": 1}  `, want: `{"a": 1}`},
		{name: "json fence", reply: "Sure.\n\n```json\n{\"a\": 2}\n```\n", want: `{"a": 2}`},
		{name: "untagged fence", reply: "```\n{\"a\": 3}\n```", want: `{"a": 3}`},
		{
			name:  "skips other languages",
			reply: "```python\nprint({})\n```\n\n```json\n{\"a\": 4}\n```",
			want:  `{"a": 4}`,
		},
		{name: "embedded in prose", reply: `The result is {"a": 5} as requested.`, want: `{"a": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.reply)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := ExtractJSON("```json\n{not json\n```")
	assert.ErrorIs(t, err, ErrNoJSON)
}
