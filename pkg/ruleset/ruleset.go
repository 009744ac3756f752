// Package ruleset loads rule files written in YAML and compiles them into
// matchers.
package ruleset

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/astrule/pkg/rule"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// Sentinel errors for rule loading.
var (
	ErrSchemaViolation = errors.New("rule does not match schema")
	ErrUnknownLanguage = errors.New("unknown language")
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrNoPositiveTerm  = errors.New("rule has no positive term")
	ErrNegatePlain     = errors.New("not requires a positive rule")
	ErrAnyPlain        = errors.New("any requires positive rules")
	ErrDuplicateID     = errors.New("duplicate rule id")
	ErrNoRules         = errors.New("no rules found")
)

// Severity is the importance of a finding.
type Severity string

// Severities, most important first.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// PatternRuleID identifies rules made from a bare template.
const PatternRuleID = "pattern"

//go:embed rule-schema.json
var schemaJSON []byte

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Rule is a compiled rule document.
type Rule struct {
	ID       string
	Language syntax.Language
	Severity Severity
	Message  string
	Note     string
	Matcher  *rule.Rule
	// Source is the file the rule was loaded from, if any.
	Source string
}

// Find returns every match of the rule in the tree below root.
func (r *Rule) Find(root *syntax.Node) []rule.Match {
	return r.Matcher.FindAll(root)
}

type document struct {
	ID       string   `yaml:"id"`
	Language string   `yaml:"language"`
	Severity Severity `yaml:"severity"`
	Message  string   `yaml:"message"`
	Note     string   `yaml:"note"`
	Rule     ruleNode `yaml:"rule"`
}

type ruleNode struct {
	Pattern   string     `yaml:"pattern"`
	Kind      string     `yaml:"kind"`
	All       []ruleNode `yaml:"all"`
	Any       []ruleNode `yaml:"any"`
	Not       *ruleNode  `yaml:"not"`
	Inside    *ruleNode  `yaml:"inside"`
	NotInside *ruleNode  `yaml:"not_inside"`
	Has       *ruleNode  `yaml:"has"`
}

// Load reads every YAML document from r and compiles it.
func Load(r io.Reader) ([]*Rule, error) {
	dec := yaml.NewDecoder(r)

	var rules []*Rule

	for index := 0; ; index++ {
		var node yaml.Node

		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", index, err)
		}

		if emptyDocument(&node) {
			continue
		}

		compiled, err := loadDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", index, err)
		}

		rules = append(rules, compiled)
	}

	if err := checkUnique(rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// LoadBytes is Load over an in-memory document.
func LoadBytes(data []byte) ([]*Rule, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile loads the rules of one file.
func LoadFile(path string) ([]*Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule file: %w", err)
	}
	defer f.Close()

	rules, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, r := range rules {
		r.Source = path
	}

	return rules, nil
}

// LoadDir loads every .yml and .yaml file below dir in lexical order.
// Failures of individual files are joined.
func LoadDir(dir string) ([]*Rule, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && isRuleFile(path) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule dir: %w", err)
	}

	return LoadPaths(files...)
}

// LoadPaths loads rule files and directories. Rule ids must be unique
// across all of them.
func LoadPaths(paths ...string) ([]*Rule, error) {
	var (
		rules []*Rule
		errs  []error
	)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("stat rule path: %w", err))

			continue
		}

		var loaded []*Rule

		if info.IsDir() {
			loaded, err = LoadDir(path)
		} else {
			loaded, err = LoadFile(path)
		}

		if err != nil {
			errs = append(errs, err)

			continue
		}

		rules = append(rules, loaded...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if len(rules) == 0 {
		return nil, ErrNoRules
	}

	if err := checkUnique(rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// FromPattern wraps a bare template into a rule with PatternRuleID.
func FromPattern(lang syntax.Language, src string) (*Rule, error) {
	if !syntax.Supported(lang) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, syntax.Describe(string(lang)))
	}

	compiled, err := compileNode(lang, ruleNode{Pattern: src})
	if err != nil {
		return nil, err
	}

	return &Rule{
		ID:       PatternRuleID,
		Language: lang,
		Severity: SeverityInfo,
		Matcher:  rule.Start(compiled.positive).Build(),
	}, nil
}

func loadDocument(node *yaml.Node) (*Rule, error) {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}

	lang := syntax.NormalizeLanguage(doc.Language)
	if !syntax.Supported(lang) {
		return nil, fmt.Errorf("rule %s: %w: %s", doc.ID, ErrUnknownLanguage, syntax.Describe(doc.Language))
	}

	compiled, err := compileNode(lang, doc.Rule)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", doc.ID, err)
	}

	if compiled.positive == nil {
		return nil, fmt.Errorf("rule %s: %w", doc.ID, ErrNoPositiveTerm)
	}

	severity := doc.Severity
	if severity == "" {
		severity = SeverityWarning
	}

	return &Rule{
		ID:       doc.ID,
		Language: lang,
		Severity: severity,
		Message:  doc.Message,
		Note:     doc.Note,
		Matcher:  rule.Start(compiled.positive).Build(),
	}, nil
}

func validate(raw any) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load rule schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}

func emptyDocument(node *yaml.Node) bool {
	if node.Kind == 0 {
		return true
	}

	if node.Kind == yaml.DocumentNode {
		return len(node.Content) == 0 || node.Content[0].Tag == "!!null"
	}

	return false
}

func isRuleFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	return ext == ".yml" || ext == ".yaml"
}

func checkUnique(rules []*Rule) error {
	seen := make(map[string]string, len(rules))

	for _, r := range rules {
		if prev, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %q in %s and %s", ErrDuplicateID, r.ID, prev, r.Source)
		}

		seen[r.ID] = r.Source
	}

	return nil
}

// IDs returns the ids of rules in sorted order.
func IDs(rules []*Rule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}

	slices.Sort(ids)

	return ids
}
