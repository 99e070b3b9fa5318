package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/continuum/internal/loopdetect"
)

const ruleWidth = 40

// styles are bound to a renderer so colour is only emitted when w is a
// terminal.
type styles struct {
	title    lipgloss.Style
	rule     lipgloss.Style
	warning  lipgloss.Style
	critical lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	dim      lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:    r.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		rule:     r.NewStyle().Foreground(lipgloss.Color("238")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("226")),
		critical: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		label:    r.NewStyle().Foreground(lipgloss.Color("45")),
		value:    r.NewStyle().Foreground(lipgloss.Color("231")).Bold(true),
		dim:      r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (s styles) icon(sev loopdetect.Severity) string {
	if sev == loopdetect.SeverityCritical {
		return s.critical.Render("[CRITICAL]")
	}
	return s.warning.Render("[WARNING]")
}

// RenderFindings prints the loop detection banner. Nothing is printed when
// there are no findings.
func RenderFindings(w io.Writer, findings []loopdetect.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	s := newStyles(w)
	rule := s.rule.Render(strings.Repeat("━", ruleWidth))

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(s.title.Render("LOOP DETECTION WARNINGS"))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "%s %s\n", s.icon(f.Severity), f.Message)
	}
	b.WriteString(rule)
	b.WriteString("\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderResult prints a short summary of an import or analysis.
func RenderResult(w io.Writer, res *Result) error {
	s := newStyles(w)
	row := func(label, value string) string {
		return fmt.Sprintf("  %s %s\n", s.label.Render(fmt.Sprintf("%-12s", label)), s.value.Render(value))
	}

	var b strings.Builder
	switch {
	case res.DryRun:
		fmt.Fprintf(&b, "Analysis of %s session %s\n", res.Assistant, res.SessionID)
	case res.Skipped:
		fmt.Fprintf(&b, "%s No messages left in %s session %s, nothing written\n",
			s.warning.Render("!"), res.Assistant, res.SessionID)
	default:
		fmt.Fprintf(&b, "Imported %d messages from %s session %s\n", res.KeptMessages, res.Assistant, res.SessionID)
	}

	b.WriteString(row("messages", fmt.Sprintf("%d kept / %d total (%d dropped)",
		res.KeptMessages, res.OriginalMessages, res.DroppedMessages)))
	b.WriteString(row("tokens", fmt.Sprintf("~%d -> ~%d (%.1f%% saved)",
		res.OriginalTokens, res.CompressedTokens, res.RatioPercent)))
	if res.SkippedLines > 0 {
		b.WriteString(row("skipped", fmt.Sprintf("%d malformed records", res.SkippedLines)))
	}
	if res.DryRun {
		b.WriteString(row("findings", fmt.Sprintf("%d", len(res.Findings))))
	}
	if res.ArchiveDir != "" {
		b.WriteString(row("location", res.ArchiveDir))
	}
	if res.DryRun {
		b.WriteString(s.dim.Render("  (dry run, nothing written)"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
