package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/astrule/pkg/config"
	"github.com/Sumatoshi-tech/astrule/pkg/ruleset"
	"github.com/Sumatoshi-tech/astrule/pkg/safeconv"
	"github.com/Sumatoshi-tech/astrule/pkg/scan"
)

var severityOrder = []ruleset.Severity{
	ruleset.SeverityError,
	ruleset.SeverityWarning,
	ruleset.SeverityInfo,
	ruleset.SeverityHint,
}

// palette colors report fragments; every color is disabled when plain.
type palette struct {
	severity map[ruleset.Severity]*color.Color
	location *color.Color
	faint    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		severity: map[ruleset.Severity]*color.Color{
			ruleset.SeverityError:   color.New(color.FgRed, color.Bold),
			ruleset.SeverityWarning: color.New(color.FgYellow, color.Bold),
			ruleset.SeverityInfo:    color.New(color.FgCyan),
			ruleset.SeverityHint:    color.New(color.FgBlue),
		},
		location: color.New(color.Bold),
		faint:    color.New(color.Faint),
	}

	all := []*color.Color{p.location, p.faint}
	for _, c := range p.severity {
		all = append(all, c)
	}

	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

func (p palette) sev(s ruleset.Severity) string {
	c, ok := p.severity[s]
	if !ok {
		return string(s)
	}

	return c.Sprint(string(s))
}

func renderReport(w io.Writer, report *scan.Report, format string, colored bool) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, report)
	case config.FormatTable:
		renderTable(w, report)
	default:
		renderText(w, report, newPalette(colored))
	}

	return nil
}

func renderJSON(w io.Writer, report *scan.Report) error {
	if report.Findings == nil {
		report.Findings = []scan.Finding{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

func renderText(w io.Writer, report *scan.Report, p palette) {
	for _, f := range report.Findings {
		location := fmt.Sprintf("%s:%d:%d", f.Path, f.Line, f.Column)

		fmt.Fprintf(w, "%s: %s[%s]", p.location.Sprint(location), p.sev(f.Severity), f.RuleID)

		if f.Message != "" {
			fmt.Fprintf(w, " %s", f.Message)
		}

		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", p.faint.Sprint(firstLine(f.Text)))

		if f.Note != "" {
			fmt.Fprintf(w, "  note: %s\n", f.Note)
		}
	}

	if len(report.Findings) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, summary(report, p))
}

func renderTable(w io.Writer, report *scan.Report) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Location", "Severity", "Rule", "Message", "Match"})

	for _, f := range report.Findings {
		tbl.AppendRow(table.Row{
			fmt.Sprintf("%s:%d:%d", f.Path, f.Line, f.Column),
			string(f.Severity),
			f.RuleID,
			f.Message,
			firstLine(f.Text),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d findings", len(report.Findings))})
	tbl.Render()

	fmt.Fprintln(w, summary(report, newPalette(false)))
}

func summary(report *scan.Report, p palette) string {
	counts := report.CountBySeverity()

	parts := make([]string, 0, len(severityOrder))

	for _, s := range severityOrder {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], p.sev(s)))
		}
	}

	line := fmt.Sprintf("Scanned %s (%s), skipped %s: %s",
		plural(report.FilesScanned, "file"),
		humanize.Bytes(safeconv.MustInt64ToUint64(report.BytesScanned)),
		plural(report.FilesSkipped, "file"),
		plural(len(report.Findings), "finding"))

	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}

	return line
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}

	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func firstLine(text string) string {
	line, _, cut := strings.Cut(text, "\n")
	if cut {
		return line + " ..."
	}

	return line
}
