package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/xab-mack/contractscan/internal/model"
)

type baseline struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	Fingerprints map[string]bool `json:"fingerprints"`
}

type baselineFile struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	Fingerprints []string  `json:"fingerprints"`
}

// loadBaseline accepts either a bare JSON array of fingerprints or the
// object written by WriteBaseline. An empty path yields an empty baseline.
func loadBaseline(path string) (baseline, error) {
	b := baseline{Fingerprints: map[string]bool{}}
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	var fps []string
	if err := json.Unmarshal(data, &fps); err != nil {
		var bf baselineFile
		if err := json.Unmarshal(data, &bf); err != nil {
			return b, fmt.Errorf("%s: neither a fingerprint list nor a baseline object: %w", path, err)
		}
		b.GeneratedAt = bf.GeneratedAt
		fps = bf.Fingerprints
	}
	for _, fp := range fps {
		b.Fingerprints[fp] = true
	}
	return b, nil
}

func filterByBaseline(findings []model.Web3Finding, b baseline) []model.Web3Finding {
	if len(b.Fingerprints) == 0 {
		return findings
	}
	var out []model.Web3Finding
	for _, f := range findings {
		if f.Fingerprint != "" && b.Fingerprints[f.Fingerprint] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// WriteBaseline records the fingerprints of findings so later scans with
// the same baseline report only new issues.
func WriteBaseline(path string, findings []model.Web3Finding) error {
	seen := map[string]bool{}
	bf := baselineFile{GeneratedAt: time.Now().UTC(), Fingerprints: []string{}}
	for _, f := range findings {
		if f.Fingerprint == "" || seen[f.Fingerprint] {
			continue
		}
		seen[f.Fingerprint] = true
		bf.Fingerprints = append(bf.Fingerprints, f.Fingerprint)
	}
	sort.Strings(bf.Fingerprints)
	data, err := json.MarshalIndent(bf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
