package plugins

import (
	"fmt"
	"regexp"

	"github.com/xab-mack/contractscan/internal/model"
)

var reentrancyPatterns = struct {
	Guard       *regexp.Regexp
	NameGuard   *regexp.Regexp
	InlineGuard *regexp.Regexp
	Call        *regexp.Regexp
}{
	Guard:     regexp.MustCompile(`(?i)(nonreentrant|noreentrancy|reentrancyguard|noreentry|mutex|\block\b|locked|guarded)`),
	NameGuard: regexp.MustCompile(`(?i)^(nonreentrant|noreentrancy|noreentry)`),
	InlineGuard: regexp.MustCompile(`(?i)(require\s*\(\s*!\s*_?(?:locked|entered|reentrant\w*)\b` +
		`|\b_?locked\s*=\s*true\b` +
		`|_status\s*[!=]=\s*_?ENTERED` +
		`|_reentrancyGuardEntered\s*\()`),
	Call: regexp.MustCompile(`\.\s*(call|delegatecall|staticcall|send|transfer)\s*(\{[^}]*\}\s*)?\(`),
}

func hasReentrancyGuard(fn *model.Function) bool {
	if reentrancyPatterns.NameGuard.MatchString(fn.Name) {
		return true
	}
	for _, m := range fn.Modifiers {
		if reentrancyPatterns.Guard.MatchString(modifierName(m)) {
			return true
		}
	}
	return reentrancyPatterns.InlineGuard.MatchString(codeOf(fn))
}

// analyzeReentrancy flags unguarded entry points where an external call
// precedes a state write (checks-effects-interactions violation).
func (d *Detector) analyzeReentrancy(pc *model.ParsedContract) []model.Web3Finding {
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			if fn.Body == "" || !fn.IsEntryPoint() || !fn.MutatesState() || hasReentrancyGuard(fn) {
				continue
			}
			code := codeOf(fn)
			call := reentrancyPatterns.Call.FindStringSubmatchIndex(code)
			if call == nil {
				continue
			}
			var write *site
			for _, s := range stateChangeSites(code, true) {
				if s.Offset > call[0] {
					write = &s
					break
				}
			}
			if write == nil {
				continue
			}
			callKind := code[call[2]:call[3]]
			callStmt := statementAt(fn.Body, code, call[0])
			writeStmt := statementAt(fn.Body, code, write.Offset)
			line := bodyLine(pc, fn, call[0])
			out = append(out, d.emit(findingSpec{
				Contract: c.Name,
				Function: fn,
				Line:     line,
				Severity: model.SeverityCritical,
				Title:    "Reentrancy: External Call Before State Update",
				Description: fmt.Sprintf("Function %s performs an external %s before updating %s. "+
					"The callee can re-enter while state still reflects the pre-call values.", fn.DisplayName(), callKind, write.Base),
				Remediation: "Apply checks-effects-interactions: update state before the external call, " +
					"or protect the function with a reentrancy guard (e.g. OpenZeppelin nonReentrant).",
				Scenario: fmt.Sprintf("An attacker contract calls %s, and from its receive/fallback hook calls back into %s "+
					"before %s is updated, repeating the operation against stale state.", fn.DisplayName(), fn.DisplayName(), write.Base),
				Complexity: model.ComplexityMedium,
				Match:      callStmt + "|" + writeStmt,
				Evidence: map[string]any{
					"externalCall":     truncate(callStmt, 160),
					"externalCallLine": line,
					"callType":         callKind,
					"stateChange":      truncate(writeStmt, 160),
					"stateChangeLine":  bodyLine(pc, fn, write.Offset),
					"stateVariable":    write.Base,
				},
			}))
		}
	}
	return out
}
