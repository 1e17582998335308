package plugins

import (
	"fmt"
	"strings"

	"github.com/fatih/camelcase"
	"github.com/xab-mack/contractscan/internal/model"
)

// Kind identifies one vulnerability family. The set is closed: every Kind has
// a catalog entry and a case in Detector.Analyze.
type Kind int

const (
	KindReentrancy Kind = iota
	KindAccessControl
	KindIntegerOverflow
	KindOracleManipulation
	KindFlashLoan
	KindStateModification
)

var kindNames = [...]string{
	KindReentrancy:         "Reentrancy",
	KindAccessControl:      "AccessControl",
	KindIntegerOverflow:    "IntegerOverflow",
	KindOracleManipulation: "OracleManipulation",
	KindFlashLoan:          "FlashLoan",
	KindStateModification:  "StateModification",
}

// Kinds returns every detector kind in registration order.
func Kinds() []Kind {
	return []Kind{
		KindReentrancy,
		KindAccessControl,
		KindIntegerOverflow,
		KindOracleManipulation,
		KindFlashLoan,
		KindStateModification,
	}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Tag is the kebab-case family tag, e.g. "flash-loan".
func (k Kind) Tag() string {
	words := camelcase.Split(k.String())
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "-")
}

// Title is the human-readable family name, e.g. "Flash Loan".
func (k Kind) Title() string {
	return strings.Join(camelcase.Split(k.String()), " ")
}

// Detector is one vulnerability family's heuristics. Detectors hold no
// mutable state; one value may analyze many contracts concurrently.
type Detector struct {
	Kind        Kind
	Name        string
	Description string
	VulnType    string
	SWCID       string
	Confidence  float64
}

// New returns the detector for kind with its catalog defaults.
func New(kind Kind) *Detector {
	entry := catalog[kind]
	return &Detector{
		Kind:        kind,
		Name:        kind.Tag(),
		Description: entry.Description,
		VulnType:    kind.Tag(),
		SWCID:       entry.SWC,
		Confidence:  entry.Confidence,
	}
}

// Builtin returns a fresh instance of every detector in registration order.
func Builtin() []*Detector {
	var out []*Detector
	for _, k := range Kinds() {
		out = append(out, New(k))
	}
	return out
}

// Lookup finds a builtin detector by name (its tag).
func Lookup(name string) (*Detector, bool) {
	for _, k := range Kinds() {
		if k.Tag() == name {
			return New(k), true
		}
	}
	return nil, false
}

// Names lists the builtin detector names.
func Names() []string {
	var out []string
	for _, k := range Kinds() {
		out = append(out, k.Tag())
	}
	return out
}

// Analyze runs the detector against pc. It reads pc only and returns findings
// in source order.
func (d *Detector) Analyze(pc *model.ParsedContract) []model.Web3Finding {
	if pc == nil {
		return nil
	}
	switch d.Kind {
	case KindReentrancy:
		return d.analyzeReentrancy(pc)
	case KindAccessControl:
		return d.analyzeAccessControl(pc)
	case KindIntegerOverflow:
		return d.analyzeIntegerOverflow(pc)
	case KindOracleManipulation:
		return d.analyzeOracle(pc)
	case KindFlashLoan:
		return d.analyzeFlashLoan(pc)
	case KindStateModification:
		return d.analyzeStateModification(pc)
	}
	panic(fmt.Sprintf("plugins: no analyzer for %s", d.Kind))
}
