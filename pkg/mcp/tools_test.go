package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const consoleRule = `
id: no-console
language: javascript
severity: error
message: drop console output
rule:
  all:
    - pattern: console.log($$$ARGS)
    - inside: { kind: function_declaration }
`

func extractText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestHandleSearch_Pattern(t *testing.T) {
	t.Parallel()

	input := SearchInput{
		Code:     "console.log(a, b)\nconsole.error(c)\n",
		Language: "javascript",
		Pattern:  "console.log($$$ARGS)",
	}

	result, output, err := handleSearch(context.Background(), &mcpsdk.CallToolRequest{}, input)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	payload, ok := output.Data.(SearchResult)
	require.True(t, ok)
	require.Equal(t, 1, payload.Count)

	finding := payload.Findings[0]
	assert.Equal(t, searchPath, finding.Path)
	assert.Equal(t, 1, finding.Line)
	assert.Equal(t, "console.log(a, b)", finding.Text)
	assert.Equal(t, map[string]string{"ARGS": "a, b"}, finding.Captures)
}

func TestHandleSearch_Rule(t *testing.T) {
	t.Parallel()

	input := SearchInput{
		Code:     "console.log(1)\nfunction f() { console.log(2) }\n",
		Language: "JS",
		Rule:     consoleRule,
	}

	result, _, err := handleSearch(context.Background(), &mcpsdk.CallToolRequest{}, input)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var payload SearchResult
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, "no-console", payload.Findings[0].RuleID)
	assert.Equal(t, 2, payload.Findings[0].Line)
}

func TestHandleSearch_NoMatchesIsEmptyList(t *testing.T) {
	t.Parallel()

	input := SearchInput{Code: "let x = 1\n", Language: "javascript", Pattern: "console.log($A)"}

	result, _, err := handleSearch(context.Background(), &mcpsdk.CallToolRequest{}, input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), `"findings": []`)
}

func TestHandleSearch_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input SearchInput
		want  string
	}{
		{
			name:  "empty code",
			input: SearchInput{Language: "go", Pattern: "$X"},
			want:  ErrEmptyCode.Error(),
		},
		{
			name:  "empty language",
			input: SearchInput{Code: "x", Pattern: "$X"},
			want:  ErrEmptyLanguage.Error(),
		},
		{
			name:  "neither pattern nor rule",
			input: SearchInput{Code: "x", Language: "javascript"},
			want:  ErrQueryChoice.Error(),
		},
		{
			name:  "both pattern and rule",
			input: SearchInput{Code: "x", Language: "javascript", Pattern: "$X", Rule: consoleRule},
			want:  ErrQueryChoice.Error(),
		},
		{
			name:  "unsupported language",
			input: SearchInput{Code: "x", Language: "klingon", Pattern: "$X"},
			want:  ErrUnsupportedLanguage.Error(),
		},
		{
			name:  "code too large",
			input: SearchInput{Code: strings.Repeat("x", MaxCodeInputBytes+1), Language: "javascript", Pattern: "$X"},
			want:  ErrCodeTooLarge.Error(),
		},
		{
			name:  "rule for another language",
			input: SearchInput{Code: "package main\n", Language: "go", Rule: consoleRule},
			want:  ErrRuleLanguage.Error(),
		},
		{
			name:  "broken pattern",
			input: SearchInput{Code: "x", Language: "javascript", Pattern: "a; b"},
			want:  "compile pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, _, err := handleSearch(context.Background(), &mcpsdk.CallToolRequest{}, tt.input)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractText(t, result), tt.want)
		})
	}
}

func TestHandleValidate(t *testing.T) {
	t.Parallel()

	result, output, err := handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{Rule: consoleRule})
	require.NoError(t, err)
	require.False(t, result.IsError)

	payload, ok := output.Data.(ValidateResult)
	require.True(t, ok)
	assert.True(t, payload.Valid)
	assert.Equal(t, []string{"no-console"}, payload.IDs)
}

func TestHandleValidate_Invalid(t *testing.T) {
	t.Parallel()

	rule := "id: neg\nlanguage: javascript\nrule:\n  not: { pattern: foo() }\n"

	result, output, err := handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{Rule: rule})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload, ok := output.Data.(ValidateResult)
	require.True(t, ok)
	assert.False(t, payload.Valid)
	assert.NotEmpty(t, payload.Error)
}

func TestHandleValidate_Empty(t *testing.T) {
	t.Parallel()

	result, _, err := handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), ErrEmptyRule.Error())
}
