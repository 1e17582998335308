package report

import (
	"github.com/xab-mack/contractscan/internal/model"
)

// Aggregate builds the final report. Findings from different detectors are
// never merged, even when they cite the same line; within one detector, an
// exact repeat (same file and fingerprint) is kept once. Order is preserved.
func Aggregate(findings []model.Web3Finding, failures []model.Failure) model.Report {
	type key struct {
		detector    string
		file        string
		fingerprint string
	}
	seen := map[key]bool{}
	out := make([]model.Web3Finding, 0, len(findings))
	for _, f := range findings {
		k := key{detector: f.Detector, file: f.File, fingerprint: f.Fingerprint}
		if f.Fingerprint != "" && seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return model.Report{Findings: out, Summary: Summarize(out, failures)}
}

// Summarize computes the per-severity and per-detector rollup of findings.
func Summarize(findings []model.Web3Finding, failures []model.Failure) model.Summary {
	s := model.Summary{ByDetector: map[string]int{}, Failures: failures}
	for _, f := range findings {
		s.Total++
		switch f.Severity {
		case model.SeverityCritical:
			s.Critical++
		case model.SeverityHigh:
			s.High++
		case model.SeverityMedium:
			s.Medium++
		case model.SeverityLow:
			s.Low++
		default:
			s.Info++
		}
		if f.Detector != "" {
			s.ByDetector[f.Detector]++
		}
		if s.Highest == "" || f.Severity.Rank() > s.Highest.Rank() {
			s.Highest = f.Severity
		}
	}
	return s
}

// FilterBySeverity keeps findings at or above threshold.
func FilterBySeverity(findings []model.Web3Finding, threshold model.Severity) []model.Web3Finding {
	var out []model.Web3Finding
	for _, f := range findings {
		if model.SeverityGTE(f.Severity, threshold) {
			out = append(out, f)
		}
	}
	return out
}
