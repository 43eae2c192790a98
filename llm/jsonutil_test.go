package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObjectFromCodeFence(t *testing.T) {
	content := "Sure, here is the result:\n```json\n{\"skill\": \"GROWTH\"}\n```\nLet me know!"
	extracted := ExtractJSONObject(content)
	assert.JSONEq(t, `{"skill": "GROWTH"}`, extracted)
}

func TestExtractJSONObjectFromPlainText(t *testing.T) {
	content := `The answer is {"question": "Why?", "explanation": "Because."} as requested.`
	extracted := ExtractJSONObject(content)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(extracted), &payload))
	assert.Equal(t, "Why?", payload["question"])
}

func TestExtractJSONArrayStripsTrailingCommas(t *testing.T) {
	content := "```\n[{\"heading\": \"One\", \"body\": \"x\",},]\n```"
	extracted := ExtractJSONArray(content)

	var sections []map[string]string
	require.NoError(t, json.Unmarshal([]byte(extracted), &sections))
	require.Len(t, sections, 1)
	assert.Equal(t, "One", sections[0]["heading"])
}

func TestExtractJSONNoPayload(t *testing.T) {
	assert.Empty(t, ExtractJSONObject("no json here"))
	assert.Empty(t, ExtractJSONArray("still nothing"))
	assert.Empty(t, ExtractJSONObject(""))
}
