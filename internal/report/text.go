package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/xab-mack/contractscan/internal/model"
)

var (
	accent  = lipgloss.Color("#D97706")
	fg      = lipgloss.Color("#E8E6E3")
	dim     = lipgloss.Color("#6B7280")
	faint   = lipgloss.Color("#3F3F46")
	success = lipgloss.Color("#22C55E")

	severityColors = map[model.Severity]lipgloss.Color{
		model.SeverityCritical: lipgloss.Color("#DC2626"),
		model.SeverityHigh:     lipgloss.Color("#EF4444"),
		model.SeverityMedium:   lipgloss.Color("#F59E0B"),
		model.SeverityLow:      lipgloss.Color("#8B949E"),
		model.SeverityInfo:     lipgloss.Color("#6B7280"),
	}
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(fg)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	passStyle   = lipgloss.NewStyle().Foreground(success)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	separator   = lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("─", 64))
)

// SeverityStyle returns the badge style used for sev.
func SeverityStyle(sev model.Severity) lipgloss.Style {
	c, ok := severityColors[sev]
	if !ok {
		c = dim
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

// Badge renders sev as a fixed-width upper-case tag.
func Badge(sev model.Severity) string {
	return SeverityStyle(sev).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(sev))))
}

// Location formats file:line, falling back to the contract name.
func Location(f model.Web3Finding) string {
	where := f.ContractName
	if f.File != "" {
		where = filepath.ToSlash(f.File)
	}
	if f.LineNumber > 0 {
		where = fmt.Sprintf("%s:%d", where, f.LineNumber)
	}
	return where
}

// RenderTable renders the report as a styled terminal listing.
func RenderTable(r model.Report) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("contractscan"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d findings", r.Summary.Total)))
	b.WriteString("\n\n")

	if len(r.Findings) == 0 {
		b.WriteString("  " + passStyle.Render("No issues found.") + "\n")
	}
	for _, f := range r.Findings {
		fn := f.ContractName
		if f.FunctionName != "" {
			fn += "." + f.FunctionName
		}
		fmt.Fprintf(&b, "  %s %s\n", Badge(f.Severity), titleStyle.Render(f.Title))
		fmt.Fprintf(&b, "           %s  %s  %s\n",
			dimStyle.Render(Location(f)), fn, dimStyle.Render(swcOrDetector(f)))
	}

	b.WriteString("\n  " + separator + "\n\n")
	b.WriteString("  ")
	for _, sev := range model.Severities {
		b.WriteString(SeverityStyle(sev).Render(fmt.Sprintf("%s %d", sev, r.Summary.Count(sev))))
		b.WriteString("  ")
	}
	b.WriteString("\n")
	for _, fail := range r.Summary.Failures {
		who := fail.Detector
		if fail.File != "" {
			who = strings.TrimPrefix(who+" "+fail.File, " ")
		}
		fmt.Fprintf(&b, "  %s %s: %s\n", failStyle.Render("partial failure"), who, fail.Error)
	}
	return b.String()
}

func swcOrDetector(f model.Web3Finding) string {
	if f.SWCID != "" {
		return f.SWCID + " " + f.Detector
	}
	return f.Detector
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
