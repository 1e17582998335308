package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xab-mack/contractscan/internal/model"
)

// sensitiveOp is one operation that must only be reachable by privileged
// callers. A function matches when NameRe matches its name or BodyRe its body.
type sensitiveOp struct {
	Operation string
	SWC       string
	NameRe    *regexp.Regexp
	BodyRe    *regexp.Regexp
}

var sensitiveOps = []sensitiveOp{
	{
		Operation: "selfdestruct",
		SWC:       "SWC-106",
		BodyRe:    regexp.MustCompile(`\b(selfdestruct|suicide)\s*\(`),
	},
	{
		Operation: "value transfer",
		SWC:       "SWC-105",
		BodyRe:    regexp.MustCompile(`\.\s*(transfer|send)\s*\(|\.\s*call\s*\{\s*value\s*:`),
	},
	{
		Operation: "withdraw",
		SWC:       "SWC-105",
		NameRe:    regexp.MustCompile(`(?i)^(withdraw|emergencywithdraw|sweep|drain|rescue)`),
	},
	{
		Operation: "ownership change",
		NameRe:    regexp.MustCompile(`(?i)^(transferownership|setowner|changeowner|renounceownership|updateowner)$`),
		BodyRe:    regexp.MustCompile(`\b_?owner\s*=[^=]`),
	},
	{
		Operation: "admin change",
		NameRe:    regexp.MustCompile(`(?i)^(setadmin|changeadmin|updateadmin|addadmin|removeadmin|transferadmin)$`),
		BodyRe:    regexp.MustCompile(`\b_?admin\s*=[^=]`),
	},
	{
		Operation: "minter change",
		NameRe:    regexp.MustCompile(`(?i)^(setminter|addminter|removeminter|grantminter)`),
		BodyRe:    regexp.MustCompile(`\b_?minters?\s*(\[[^\]]*\])?\s*=[^=]`),
	},
	{
		Operation: "pauser change",
		NameRe:    regexp.MustCompile(`(?i)^(pause|unpause|setpaused|setpauser|addpauser|removepauser)$`),
		BodyRe:    regexp.MustCompile(`\b_?paused\s*=[^=]|\b_?pausers?\s*(\[[^\]]*\])?\s*=[^=]`),
	},
	{
		Operation: "upgrade",
		NameRe:    regexp.MustCompile(`(?i)^(upgradeto|upgradetoandcall|setimplementation|upgrade)$`),
		BodyRe:    regexp.MustCompile(`\b_?implementation\s*=[^=]|\bdelegatecall\s*\(`),
	},
}

var txOriginPatterns = struct {
	Use        *regexp.Regexp
	Comparison *regexp.Regexp
	Guard      *regexp.Regexp
}{
	Use:        regexp.MustCompile(`\btx\s*\.\s*origin\b`),
	Comparison: regexp.MustCompile(`tx\s*\.\s*origin\s*[!=]=|[!=]=\s*tx\s*\.\s*origin`),
	Guard:      regexp.MustCompile(`\b(require|assert|if)\s*\(`),
}

func (d *Detector) analyzeAccessControl(pc *model.ParsedContract) []model.Web3Finding {
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		for mi := range c.Modifiers {
			out = append(out, d.txOriginFindings(pc, c, &c.Modifiers[mi], true)...)
		}
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			out = append(out, d.txOriginFindings(pc, c, fn, false)...)
			if f, ok := d.unprotectedOperation(pc, c, fn); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// txOriginFindings reports every tx.origin use that takes part in an
// authorization decision, in a function body or a modifier definition.
func (d *Detector) txOriginFindings(pc *model.ParsedContract, c *model.Contract, fn *model.Function, modifier bool) []model.Web3Finding {
	var out []model.Web3Finding
	kind, spec := "Function", findingSpec{Function: fn}
	if modifier {
		kind, spec = "Modifier", findingSpec{Modifier: fn}
	}
	code := codeOf(fn)
	for _, loc := range txOriginPatterns.Use.FindAllStringIndex(code, -1) {
		stmt := statementAt(fn.Body, code, loc[0])
		if !txOriginPatterns.Comparison.MatchString(stmt) && !txOriginPatterns.Guard.MatchString(stmt) {
			continue
		}
		line := bodyLine(pc, fn, loc[0])
		spec.Contract = c.Name
		spec.Line = line
		spec.Severity = model.SeverityHigh
		spec.Title = "Authorization Through tx.origin"
		spec.Description = fmt.Sprintf("%s %s uses tx.origin for an authorization check. tx.origin is the "+
			"transaction signer, not the immediate caller, so any contract the signer interacts with can pass the check.", kind, fn.DisplayName())
		spec.Remediation = "Use msg.sender for authorization. Reserve tx.origin for rejecting contract callers (tx.origin == msg.sender) if at all."
		spec.Scenario = "The attacker lures the owner into calling a malicious contract, which then calls " +
			fn.DisplayName() + "; tx.origin is still the owner, so the check passes."
		spec.Complexity = model.ComplexityMedium
		spec.SWC = "SWC-115"
		spec.Match = fmt.Sprintf("%d:%s", loc[0], stmt)
		spec.Evidence = map[string]any{
			"matched": truncate(stmt, 160),
			"line":    line,
		}
		out = append(out, d.emit(spec))
	}
	return out
}

// unprotectedOperation reports a sensitive entry point with no access control.
func (d *Detector) unprotectedOperation(pc *model.ParsedContract, c *model.Contract, fn *model.Function) (model.Web3Finding, bool) {
	if !fn.IsEntryPoint() || !fn.MutatesState() || fn.IsConstructor() {
		return model.Web3Finding{}, false
	}
	code := codeOf(fn)
	var ops []string
	var matched []string
	swc := ""
	for _, op := range sensitiveOps {
		hit := ""
		if op.NameRe != nil && op.NameRe.MatchString(fn.Name) {
			hit = fn.Name
		} else if op.BodyRe != nil {
			if loc := op.BodyRe.FindStringIndex(code); loc != nil {
				hit = statementAt(fn.Body, code, loc[0])
			}
		}
		if hit == "" {
			continue
		}
		if len(ops) == 0 {
			swc = op.SWC
		}
		ops = append(ops, op.Operation)
		matched = append(matched, truncate(hit, 120))
	}
	if len(ops) == 0 || hasAccessControl(fn) {
		return model.Web3Finding{}, false
	}
	if swc == "" {
		swc = d.SWCID
	}
	return d.emit(findingSpec{
		Contract: c.Name,
		Function: fn,
		Line:     fn.LineStart,
		Severity: model.SeverityCritical,
		Title:    "Unprotected " + titleCase(ops[0]),
		Description: fmt.Sprintf("%s function %s performs %s without any access control. "+
			"Any account can invoke it.", fn.Visibility, fn.DisplayName(), strings.Join(ops, ", ")),
		Remediation: "Restrict the function with an access-control modifier (onlyOwner, onlyRole) " +
			"or an explicit require(msg.sender == owner) check.",
		Scenario: fmt.Sprintf("An arbitrary account calls %s directly and triggers the %s.",
			fn.DisplayName(), ops[0]),
		Complexity: model.ComplexityLow,
		SWC:        swc,
		Match:      strings.Join(ops, ","),
		Evidence: map[string]any{
			"operation":       ops[0],
			"operations":      ops,
			"visibility":      fn.Visibility,
			"modifiers":       modifierList(fn),
			"stateMutability": fn.StateMutability,
			"matched":         matched,
		},
	}), true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
