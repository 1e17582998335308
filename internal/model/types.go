package model

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

func ParseSeverity(s string) Severity {
	switch s {
	case string(SeverityCritical):
		return SeverityCritical
	case string(SeverityHigh):
		return SeverityHigh
	case string(SeverityMedium):
		return SeverityMedium
	case string(SeverityLow):
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ValidSeverity reports whether s names a known severity.
func ValidSeverity(s string) bool {
	for _, sev := range Severities {
		if string(sev) == s {
			return true
		}
	}
	return false
}

func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	default:
		return 1
	}
}

func SeverityGTE(a, b Severity) bool {
	return a.Rank() >= b.Rank()
}

type ExploitComplexity string

const (
	ComplexityLow    ExploitComplexity = "low"
	ComplexityMedium ExploitComplexity = "medium"
	ComplexityHigh   ExploitComplexity = "high"
)

const CategorySmartContract = "smart-contract"

// SecurityFinding is the generic, category-agnostic part of a finding.
type SecurityFinding struct {
	ID          string         `json:"id"`
	Severity    Severity       `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Remediation string         `json:"remediation"`
	References  []string       `json:"references"`
	Category    string         `json:"category"`
	Timestamp   time.Time      `json:"timestamp"`
	Evidence    map[string]any `json:"evidence"`
}

// Web3Finding is one smart-contract finding. It is built once by a detector
// and never modified by the pipeline afterwards, except for the File field
// which the engine fills in when the contract was read from disk.
type Web3Finding struct {
	SecurityFinding
	VulnerabilityType string            `json:"vulnerabilityType"`
	ContractName      string            `json:"contractName"`
	FunctionName      string            `json:"functionName,omitempty"`
	LineNumber        int               `json:"lineNumber,omitempty"`
	SWCID             string            `json:"swcId,omitempty"`
	ExploitScenario   string            `json:"exploitScenario"`
	ExploitComplexity ExploitComplexity `json:"exploitComplexity"`

	Detector    string  `json:"detector"`
	Confidence  float64 `json:"confidence"`
	File        string  `json:"file,omitempty"`
	Fingerprint string  `json:"fingerprint"`
}

// Failure records a detector (or file) that could not complete.
type Failure struct {
	Detector string `json:"detector,omitempty"`
	File     string `json:"file,omitempty"`
	Error    string `json:"error"`
}

type Summary struct {
	Total      int            `json:"total"`
	Critical   int            `json:"critical"`
	High       int            `json:"high"`
	Medium     int            `json:"medium"`
	Low        int            `json:"low"`
	Info       int            `json:"info"`
	ByDetector map[string]int `json:"byDetector,omitempty"`
	Failures   []Failure      `json:"failures,omitempty"`
	Highest    Severity       `json:"highest,omitempty"`
}

// Count returns the number of findings recorded for sev.
func (s Summary) Count(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return s.Critical
	case SeverityHigh:
		return s.High
	case SeverityMedium:
		return s.Medium
	case SeverityLow:
		return s.Low
	default:
		return s.Info
	}
}

type Report struct {
	Findings []Web3Finding `json:"findings"`
	Summary  Summary       `json:"summary"`
}

type ScanRequest struct {
	Path       string
	DeltaOnly  bool
	TimeBudget time.Duration
	ConfigPath string
	Baseline   string
}

type ScanResult struct {
	Report
	Files   []string      `json:"files"`
	Elapsed time.Duration `json:"elapsed"`
}
