package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/report"
	"github.com/xab-mack/contractscan/internal/util"
)

var (
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D97706"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E8E6E3"))
)

type modelT struct {
	findings []model.Web3Finding
	summary  model.Summary
	cursor   int
	expanded bool
	// source returns the text of a finding's file, or "" when unavailable.
	source func(file string) string
}

func initialModel(r model.Report, source func(string) string) modelT {
	if source == nil {
		source = func(string) string { return "" }
	}
	return modelT{findings: r.Findings, summary: r.Summary, source: source}
}

func (m modelT) Init() tea.Cmd { return nil }

func (m modelT) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.findings)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.findings)-1, 0)
	case "enter", " ":
		m.expanded = !m.expanded
	}
	return m, nil
}

func (m modelT) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\n", labelStyle.Render(fmt.Sprintf("Findings (%d)", len(m.findings))),
		dimStyle.Render("↑/↓ move · enter details · q quit"))
	if len(m.findings) == 0 {
		b.WriteString("No issues found.\n")
	}
	for i, f := range m.findings {
		pointer := "  "
		if i == m.cursor {
			pointer = cursorStyle.Render("> ")
		}
		fmt.Fprintf(&b, "%s%s %s  %s\n", pointer, report.Badge(f.Severity), f.Title, dimStyle.Render(report.Location(f)))
		if i == m.cursor && m.expanded {
			b.WriteString(details(f))
			b.WriteString(snippet(m.source(f.File), f.LineNumber))
		}
	}
	for _, fail := range m.summary.Failures {
		fmt.Fprintf(&b, "\n%s %s %s: %s", dimStyle.Render("partial failure"), fail.Detector, fail.File, fail.Error)
	}
	return b.String()
}

func details(f model.Web3Finding) string {
	var b strings.Builder
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "      %s %s\n", labelStyle.Render(label+":"), value)
		}
	}
	fn := f.ContractName
	if f.FunctionName != "" {
		fn += "." + f.FunctionName
	}
	row("Location", fn)
	row("Detector", f.Detector)
	row("SWC", f.SWCID)
	row("Confidence", fmt.Sprintf("%.2f", f.Confidence))
	row("Description", f.Description)
	row("Exploit", f.ExploitScenario)
	row("Fix", f.Remediation)
	keys := make([]string, 0, len(f.Evidence))
	for k := range f.Evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row(k, fmt.Sprint(f.Evidence[k]))
	}
	return b.String()
}

func snippet(content string, line int) string {
	if content == "" || line <= 0 {
		return ""
	}
	text := util.ExtractSnippet(content, line, line, 6)
	first := max(1, line-3)
	var b strings.Builder
	for i, l := range strings.Split(text, "\n") {
		n := first + i
		marker := "  "
		if n == line {
			marker = cursorStyle.Render("> ")
		}
		fmt.Fprintf(&b, "      %s%s %s\n", marker, dimStyle.Render(fmt.Sprintf("%4d", n)), l)
	}
	return b.String()
}

// Run opens an interactive browser over the report's findings. File paths in
// findings are resolved against root to show source context.
func Run(r model.Report, root string) error {
	read := func(file string) string {
		if file == "" {
			return ""
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(file)))
		if err != nil {
			return ""
		}
		return string(data)
	}
	p := tea.NewProgram(initialModel(r, read))
	_, err := p.Run()
	return err
}
