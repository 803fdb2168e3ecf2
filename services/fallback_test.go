package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownTools = map[string]bool{
	"assign_class":        true,
	"roll_ability_scores": true,
}

func TestExtractToolCallJSONObject(t *testing.T) {
	content := `I'll set that up for you.
{"tool": "assign_class", "arguments": {"character_id": "abc", "class_name": "Wizard"}}`

	call := ExtractToolCall(content, knownTools)
	require.NotNil(t, call)
	assert.Equal(t, "assign_class", call.Name)
	assert.Equal(t, "Wizard", call.Arguments["class_name"])
	assert.NotEmpty(t, call.ID)
}

func TestExtractToolCallFencedBlock(t *testing.T) {
	content := "Sure:\n```json\n{\"name\": \"assign_class\", \"args\": {\"class_name\": \"Rogue\"}}\n```"

	call := ExtractToolCall(content, knownTools)
	require.NotNil(t, call)
	assert.Equal(t, "assign_class", call.Name)
	assert.Equal(t, "Rogue", call.Arguments["class_name"])
}

func TestExtractToolCallFunctionSyntax(t *testing.T) {
	content := `Let me roll: assign_class({"class_name": "Bard"})`

	call := ExtractToolCall(content, knownTools)
	require.NotNil(t, call)
	assert.Equal(t, "assign_class", call.Name)
	assert.Equal(t, "Bard", call.Arguments["class_name"])
}

func TestExtractToolCallNoArgumentsDefaultsEmpty(t *testing.T) {
	content := `{"tool": "roll_ability_scores"}`

	call := ExtractToolCall(content, knownTools)
	require.NotNil(t, call)
	assert.Equal(t, "roll_ability_scores", call.Name)
	assert.NotNil(t, call.Arguments)
	assert.Empty(t, call.Arguments)
}

func TestExtractToolCallNeverGuesses(t *testing.T) {
	cases := map[string]string{
		"plain prose":       "I recommend the Barbarian class for a fierce warrior.",
		"unknown tool":      `{"tool": "summon_dragon", "arguments": {}}`,
		"invalid json":      `{"tool": "assign_class", "arguments": {broken}`,
		"unbalanced braces": `assign_class({"class_name": "Bard"`,
		"json without tool": `{"speed": 30, "size": "medium"}`,
		"name not a string": `{"tool": 7, "arguments": {}}`,
		"empty content":     "",
		"unknown fn syntax": `fireball({"level": 3})`,
	}
	for label, content := range cases {
		t.Run(label, func(t *testing.T) {
			assert.Nil(t, ExtractToolCall(content, knownTools))
		})
	}
}

func TestExtractToolCallSkipsNonCallObjects(t *testing.T) {
	content := `Here is the character sheet: {"name": "Thorin", "class": "Fighter"}.
Now executing: {"tool": "assign_class", "arguments": {"class_name": "Fighter"}}`

	call := ExtractToolCall(content, knownTools)
	require.NotNil(t, call)
	assert.Equal(t, "assign_class", call.Name)
	assert.Equal(t, "Fighter", call.Arguments["class_name"])
}

func TestExtractToolCallHandlesStringsWithBraces(t *testing.T) {
	content := `{"tool": "assign_class", "arguments": {"class_name": "Wi{za}rd"}}`

	call := ExtractToolCall(content, knownTools)
	require.NotNil(t, call)
	assert.Equal(t, "Wi{za}rd", call.Arguments["class_name"])
}

func TestExtractToolCallNilForNoKnownTools(t *testing.T) {
	assert.Nil(t, ExtractToolCall(`{"tool": "assign_class", "arguments": {}}`, nil))
}
