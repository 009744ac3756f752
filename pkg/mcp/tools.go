package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/astrule/pkg/ruleset"
	"github.com/Sumatoshi-tech/astrule/pkg/scan"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Tool names.
const (
	ToolNameSearch   = "astrule_search"
	ToolNameValidate = "astrule_validate_rule"
)

// MaxCodeInputBytes is the largest inline source accepted by astrule_search.
const MaxCodeInputBytes = 1 << 20

// searchPath labels findings for inline code.
const searchPath = "<input>"

// Sentinel errors for tool input validation.
var (
	ErrEmptyCode           = errors.New("code parameter is required and must not be empty")
	ErrEmptyLanguage       = errors.New("language parameter is required and must not be empty")
	ErrCodeTooLarge        = errors.New("code input exceeds maximum size")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrQueryChoice         = errors.New("exactly one of pattern and rule is required")
	ErrEmptyRule           = errors.New("rule parameter is required and must not be empty")
	ErrRuleLanguage        = errors.New("no rule targets the requested language")
)

// SearchInput is the input schema for astrule_search.
type SearchInput struct {
	Code     string `json:"code"              jsonschema:"source code to search"`
	Language string `json:"language"          jsonschema:"grammar of the code (e.g. javascript go python)"`
	Pattern  string `json:"pattern,omitempty" jsonschema:"code template with $NAME, $_ and $$$ placeholders"`
	Rule     string `json:"rule,omitempty"    jsonschema:"YAML rule document(s); used instead of pattern"`
}

// ValidateInput is the input schema for astrule_validate_rule.
type ValidateInput struct {
	Rule string `json:"rule" jsonschema:"YAML rule document(s) to check"`
}

// SearchResult is the payload returned by astrule_search.
type SearchResult struct {
	Findings []scan.Finding `json:"findings"`
	Count    int            `json:"count"`
}

// ValidateResult is the payload returned by astrule_validate_rule.
type ValidateResult struct {
	Valid bool     `json:"valid"`
	IDs   []string `json:"ids,omitempty"`
	Error string   `json:"error,omitempty"`
}

// ToolOutput is the structured output of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

func handleSearch(ctx context.Context, _ *mcpsdk.CallToolRequest, input SearchInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	lang, err := validateSearchInput(input)
	if err != nil {
		return errorResult(err)
	}

	rules, err := searchRules(lang, input)
	if err != nil {
		return errorResult(err)
	}

	scanner, err := scan.New(rules)
	if err != nil {
		return errorResult(err)
	}

	findings, err := scanner.ScanSource(ctx, searchPath, lang, []byte(input.Code))
	if err != nil {
		return errorResult(err)
	}

	if findings == nil {
		findings = []scan.Finding{}
	}

	return jsonResult(SearchResult{Findings: findings, Count: len(findings)})
}

func handleValidate(_ context.Context, _ *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Rule == "" {
		return errorResult(ErrEmptyRule)
	}

	rules, err := ruleset.LoadBytes([]byte(input.Rule))
	if err != nil {
		return jsonResult(ValidateResult{Error: err.Error()})
	}

	if len(rules) == 0 {
		return jsonResult(ValidateResult{Error: ruleset.ErrNoRules.Error()})
	}

	return jsonResult(ValidateResult{Valid: true, IDs: ruleset.IDs(rules)})
}

func validateSearchInput(input SearchInput) (syntax.Language, error) {
	if input.Code == "" {
		return "", ErrEmptyCode
	}

	if len(input.Code) > MaxCodeInputBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(input.Code), MaxCodeInputBytes)
	}

	if input.Language == "" {
		return "", ErrEmptyLanguage
	}

	if (input.Pattern == "") == (input.Rule == "") {
		return "", ErrQueryChoice
	}

	lang := syntax.NormalizeLanguage(input.Language)
	if !syntax.Supported(lang) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, syntax.Describe(input.Language))
	}

	return lang, nil
}

func searchRules(lang syntax.Language, input SearchInput) ([]*ruleset.Rule, error) {
	if input.Pattern != "" {
		r, err := ruleset.FromPattern(lang, input.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern: %w", err)
		}

		return []*ruleset.Rule{r}, nil
	}

	rules, err := ruleset.LoadBytes([]byte(input.Rule))
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}

	for _, r := range rules {
		if r.Language == lang {
			return rules, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrRuleLanguage, lang)
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
