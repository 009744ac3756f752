package scan

import (
	"cmp"
	"slices"

	"github.com/Sumatoshi-tech/astrule/pkg/rule"
	"github.com/Sumatoshi-tech/astrule/pkg/ruleset"
)

// Finding is one rule match. Lines and columns are 1-based; columns count bytes.
type Finding struct {
	RuleID    string            `json:"rule_id"`
	Severity  ruleset.Severity  `json:"severity"`
	Message   string            `json:"message,omitempty"`
	Note      string            `json:"note,omitempty"`
	Path      string            `json:"path"`
	Line      int               `json:"line"`
	Column    int               `json:"column"`
	EndLine   int               `json:"end_line"`
	EndColumn int               `json:"end_column"`
	Text      string            `json:"text"`
	Captures  map[string]string `json:"captures,omitempty"`
}

// Report summarizes a scan over many files.
type Report struct {
	Findings     []Finding `json:"findings"`
	FilesScanned int       `json:"files_scanned"`
	FilesSkipped int       `json:"files_skipped"`
	BytesScanned int64     `json:"bytes_scanned"`
}

// CountBySeverity returns the number of findings per severity.
func (r *Report) CountBySeverity() map[ruleset.Severity]int {
	counts := make(map[ruleset.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}

	return counts
}

// HasErrors reports whether any finding has error severity.
func (r *Report) HasErrors() bool {
	return slices.ContainsFunc(r.Findings, func(f Finding) bool {
		return f.Severity == ruleset.SeverityError
	})
}

func newFinding(path string, r *ruleset.Rule, m rule.Match) Finding {
	start, end := m.Node.Start(), m.Node.End()

	finding := Finding{
		RuleID:    r.ID,
		Severity:  r.Severity,
		Message:   r.Message,
		Note:      r.Note,
		Path:      path,
		Line:      start.Line + 1,
		Column:    start.Column + 1,
		EndLine:   end.Line + 1,
		EndColumn: end.Column + 1,
		Text:      m.Node.Text(),
	}

	if m.Env.Len() > 0 {
		finding.Captures = m.Env.Texts()
	}

	return finding
}

func sortFindings(findings []Finding) {
	slices.SortFunc(findings, func(a, b Finding) int {
		return cmp.Or(
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Column, b.Column),
			cmp.Compare(a.RuleID, b.RuleID),
		)
	})
}
