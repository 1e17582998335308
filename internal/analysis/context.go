package analysis

import (
	"sort"

	"github.com/xab-mack/contractscan/internal/model"
)

// Source is one Solidity file of a scan: where it was read from, how it is
// reported, and its parsed model.
type Source struct {
	Path    string
	Display string
	Content string
	Parsed  *model.ParsedContract
}

// ProjectContext holds the parsed artifacts of one scan invocation. It is
// built once, read by every file scan, and discarded with the report.
type ProjectContext struct {
	RootPath string
	Sources  map[string]*Source
}

func NewProjectContext(root string) *ProjectContext {
	return &ProjectContext{RootPath: root, Sources: map[string]*Source{}}
}

// Add records a parsed file under its display name.
func (p *ProjectContext) Add(s *Source) {
	p.Sources[s.Display] = s
}

// Files returns the display names of every source in sorted order.
func (p *ProjectContext) Files() []string {
	out := make([]string, 0, len(p.Sources))
	for name := range p.Sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Content returns the raw text of a file by display name.
func (p *ProjectContext) Content(display string) string {
	if s, ok := p.Sources[display]; ok {
		return s.Content
	}
	return ""
}
