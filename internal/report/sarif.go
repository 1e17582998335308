package report

import (
	"encoding/json"
	"sort"

	"github.com/xab-mack/contractscan/internal/model"
)

const sarifSchema = "https://json.schemastore.org/sarif-2.1.0.json"

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
	HelpURI          string       `json:"helpUri,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLoc struct {
	Physical sarifPhys      `json:"physicalLocation"`
	Logical  []sarifLogical `json:"logicalLocations,omitempty"`
}
type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}
type sarifArt struct {
	URI string `json:"uri"`
}
type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}
type sarifLogical struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind"`
}

// RuleInfo describes one detector for the SARIF rules table.
type RuleInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	HelpURI     string `json:"helpUri,omitempty"`
}

func sarifLevel(sev model.Severity) string {
	switch sev {
	case model.SeverityHigh, model.SeverityCritical:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// ToSARIF renders findings as a SARIF 2.1.0 log.
func ToSARIF(findings []model.Web3Finding, rules []RuleInfo, version string) ([]byte, error) {
	results := make([]sarifResult, 0, len(findings))
	for _, f := range findings {
		line := max(f.LineNumber, 1)
		loc := sarifLoc{Physical: sarifPhys{
			ArtifactLocation: sarifArt{URI: f.File},
			Region:           sarifRegion{StartLine: line, EndLine: line},
		}}
		if f.ContractName != "" {
			name := f.ContractName
			kind := "type"
			if f.FunctionName != "" {
				name += "." + f.FunctionName
				kind = "function"
			}
			loc.Logical = []sarifLogical{{FullyQualifiedName: name, Kind: kind}}
		}
		props := map[string]any{
			"severity":   string(f.Severity),
			"confidence": f.Confidence,
		}
		if f.SWCID != "" {
			props["swcId"] = f.SWCID
		}
		results = append(results, sarifResult{
			RuleID:              f.Detector,
			Level:               sarifLevel(f.Severity),
			Message:             sarifMessage{Text: f.Title + ": " + f.Description},
			Locations:           []sarifLoc{loc},
			PartialFingerprints: map[string]string{"contractscan/v1": f.Fingerprint},
			Properties:          props,
		})
	}
	var driverRules []sarifRule
	for _, r := range rules {
		driverRules = append(driverRules, sarifRule{ID: r.ID, ShortDescription: sarifMessage{Text: r.Description}, HelpURI: r.HelpURI})
	}
	sort.Slice(driverRules, func(i, j int) bool { return driverRules[i].ID < driverRules[j].ID })
	s := sarif{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "contractscan", Version: version, Rules: driverRules}},
			Results: results,
		}},
	}
	return json.MarshalIndent(s, "", "  ")
}
