package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xab-mack/contractscan/internal/model"
)

var criticalVarPattern = regexp.MustCompile(`(?i)(owner|admin|balance|price|fee|whitelist|blacklist|allowlist|paused|rate|supply|limit` +
	`|threshold|treasury|oracle|implementation|minter|governance|role|reward|collateral|debt|signer|operator|vault|cap)`)

func criticalStateVars(c *model.Contract) map[string]bool {
	out := map[string]bool{}
	for _, v := range c.StateVariables {
		if criticalVarPattern.MatchString(v.Name) {
			out[v.Name] = true
		}
	}
	return out
}

func (d *Detector) analyzeStateModification(pc *model.ParsedContract) []model.Web3Finding {
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		critical := criticalStateVars(c)
		declared := map[string]bool{}
		for _, v := range c.StateVariables {
			declared[v.Name] = true
		}
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			if fn.Body == "" || !fn.IsEntryPoint() || !fn.MutatesState() || fn.IsConstructor() {
				continue
			}
			code := codeOf(fn)
			var modified, inferred []string
			seen := map[string]bool{}
			first := -1
			for _, s := range stateChangeSites(code, false) {
				if seen[s.Base] {
					continue
				}
				switch {
				case critical[s.Base]:
					modified = append(modified, s.Base)
				case !declared[s.Base] && !fn.HasParameter(s.Base) && criticalVarPattern.MatchString(s.Base):
					inferred = append(inferred, s.Base)
				default:
					continue
				}
				seen[s.Base] = true
				if first < 0 {
					first = s.Offset
				}
			}
			if first < 0 {
				continue
			}
			guarded := hasAccessControl(fn)
			validated := accessPatterns.Validate.MatchString(code)
			vars := append(append([]string(nil), modified...), inferred...)
			spec := findingSpec{
				Contract:   c.Name,
				Function:   fn,
				Line:       bodyLine(pc, fn, first),
				Match:      strings.Join(vars, ","),
				Complexity: model.ComplexityLow,
				Evidence: map[string]any{
					"modifiedVariables": nonNil(modified),
					"inferredVariables": nonNil(inferred),
					"modifiers":         modifierList(fn),
					"hasAccessControl":  guarded,
					"parameters":        len(fn.Parameters),
				},
			}
			switch {
			case !guarded:
				spec.Severity = model.SeverityCritical
				spec.Title = "Unprotected Critical State Modification"
				spec.Description = fmt.Sprintf("Function %s modifies critical state (%s) without access control.",
					fn.DisplayName(), strings.Join(vars, ", "))
				spec.Remediation = "Restrict the function to privileged callers with an access-control modifier or an explicit msg.sender check."
				spec.Scenario = fmt.Sprintf("Any account calls %s and overwrites %s, e.g. redirecting funds or taking over privileged roles.",
					fn.DisplayName(), vars[0])
			case len(fn.Parameters) > 0 && !validated:
				spec.Severity = model.SeverityMedium
				spec.Complexity = model.ComplexityHigh
				spec.Title = "Critical State Modification Without Input Validation"
				spec.Description = fmt.Sprintf("Function %s is access-controlled but writes caller-supplied values to critical state (%s) "+
					"without require/assert/revert validation.", fn.DisplayName(), strings.Join(vars, ", "))
				spec.Remediation = "Validate inputs before writing them (non-zero addresses, bounded fees and rates)."
				spec.Scenario = "A privileged account, compromised or mistaken, sets an invalid value such as the zero address or an excessive fee."
			default:
				continue
			}
			out = append(out, d.emit(spec))
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
