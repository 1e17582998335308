package plugins

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/solidity"
	"github.com/xab-mack/contractscan/internal/util"
)

// lookbackWindow is how far before a write the local-declaration check looks.
const lookbackWindow = 48

// Access-control vocabulary shared by the access-control and
// state-modification detectors.
var accessPatterns = struct {
	Modifier *regexp.Regexp
	Inline   *regexp.Regexp
	Validate *regexp.Regexp
}{
	Modifier: regexp.MustCompile(`(?i)^(only\w+|auth|requiresauth|\w+only|isowner|isadmin|isauthorized|authorized|restricted)$`),
	Inline: regexp.MustCompile(`(?i)(require\s*\(\s*(?:_?msgSender\(\)|msg\.sender)\s*==` +
		`|require\s*\([^;]*==\s*(?:_?msgSender\(\)|msg\.sender)` +
		`|if\s*\(\s*(?:_?msgSender\(\)|msg\.sender)\s*!=` +
		`|if\s*\([^;{]*!=\s*(?:_?msgSender\(\)|msg\.sender)` +
		`|hasRole\s*\(|_checkOwner\s*\(|_checkRole\s*\(|isOwner\s*\(` +
		`|\b(?:authorized|admins|operators|whitelist)\s*\[\s*(?:_?msgSender\(\)|msg\.sender)\s*\])`),
	Validate: regexp.MustCompile(`\b(require|assert|revert)\b`),
}

// Write-site vocabulary shared by the reentrancy and state-modification
// detectors. Targets are an identifier followed by any index or member
// accesses.
var writePatterns = struct {
	Assign    *regexp.Regexp
	PostIncr  *regexp.Regexp
	PreIncr   *regexp.Regexp
	Delete    *regexp.Regexp
	PushPop   *regexp.Regexp
	LocalDecl *regexp.Regexp
}{
	Assign:   regexp.MustCompile(`([A-Za-z_$][\w$]*)((?:\s*\[[^\]]*\]|\s*\.\s*[A-Za-z_$][\w$]*)*)\s*(?:[-+*/%|&^]|<<|>>)?=(?:[^=>]|$)`),
	PostIncr: regexp.MustCompile(`([A-Za-z_$][\w$]*)((?:\s*\[[^\]]*\]|\s*\.\s*[A-Za-z_$][\w$]*)*)\s*(?:\+\+|--)`),
	PreIncr:  regexp.MustCompile(`(?:\+\+|--)\s*([A-Za-z_$][\w$]*)`),
	Delete:   regexp.MustCompile(`\bdelete\s+([A-Za-z_$][\w$]*)`),
	PushPop:  regexp.MustCompile(`([A-Za-z_$][\w$]*)((?:\s*\[[^\]]*\]|\s*\.\s*[A-Za-z_$][\w$]*)*)\s*\.\s*(?:push|pop)\s*\(`),
	// A declaration keyword after the last statement boundary marks a local.
	// This is textual, not scope analysis: storage pointers and locals
	// declared earlier without an initializer still count as state writes.
	LocalDecl: regexp.MustCompile(`\b(memory|calldata|u?int\d*|bool|address|bytes\d*|string)\b[^;{}()]*$`),
}

var notTargets = map[string]bool{
	"return": true, "if": true, "while": true, "for": true, "emit": true,
	"require": true, "else": true, "delete": true,
}

// site is one located match inside a function body.
type site struct {
	Offset int
	Text   string
	Base   string
}

// stateChangeSites finds assignments, compound assignments, increments,
// deletes and (optionally) array push/pop in the masked body, skipping writes
// that look like local declarations. Sites are ordered by offset.
func stateChangeSites(body string, withPushPop bool) []site {
	var out []site
	add := func(re *regexp.Regexp, baseGroup int, checkLocal bool) {
		for _, m := range re.FindAllStringSubmatchIndex(body, -1) {
			base := body[m[2*baseGroup]:m[2*baseGroup+1]]
			if notTargets[base] {
				continue
			}
			if checkLocal && isLocalDeclaration(body, m[0]) {
				continue
			}
			out = append(out, site{Offset: m[0], Text: strings.TrimSpace(body[m[0]:m[1]]), Base: base})
		}
	}
	add(writePatterns.Assign, 1, true)
	add(writePatterns.PostIncr, 1, true)
	add(writePatterns.PreIncr, 1, true)
	add(writePatterns.Delete, 1, false)
	if withPushPop {
		add(writePatterns.PushPop, 1, false)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func isLocalDeclaration(body string, offset int) bool {
	from := max(0, offset-lookbackWindow)
	return writePatterns.LocalDecl.MatchString(body[from:offset])
}

// declaredLocally reports whether name appears in body[:limit] right after a
// local declaration keyword.
func declaredLocally(body, name string, limit int) bool {
	prefix := body[:min(limit, len(body))]
	for from := 0; ; {
		i := strings.Index(prefix[from:], name)
		if i < 0 {
			return false
		}
		at := from + i
		end := at + len(name)
		wordStart := at == 0 || !isIdentByte(prefix[at-1])
		wordEnd := end >= len(prefix) || !isIdentByte(prefix[end])
		if wordStart && wordEnd && isLocalDeclaration(prefix, at) {
			return true
		}
		from = end
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// codeOf returns fn's body with comments and string literals blanked out.
// Offsets into the result are valid offsets into fn.Body.
func codeOf(fn *model.Function) string {
	return solidity.Mask(fn.Body)
}

// statementAt returns the raw text of the statement around offset: from the
// previous ';', '{' or '}' up to the next ';'. Boundaries are found in code,
// the masked copy of raw.
func statementAt(raw, code string, offset int) string {
	if offset > len(code) {
		offset = len(code)
	}
	start := strings.LastIndexAny(code[:offset], ";{}") + 1
	end := strings.IndexByte(code[offset:], ';')
	if end < 0 {
		end = len(code)
	} else {
		end += offset
	}
	return util.Compact(raw[start:end])
}

// hasAccessControl reports whether fn carries an access-control modifier or
// an inline caller check.
func hasAccessControl(fn *model.Function) bool {
	for _, m := range fn.Modifiers {
		if accessPatterns.Modifier.MatchString(modifierName(m)) {
			return true
		}
	}
	return accessPatterns.Inline.MatchString(codeOf(fn))
}

func modifierName(m string) string {
	if i := strings.Index(m, "("); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

func paramTypes(fn *model.Function) []string {
	out := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		out = append(out, p.Type)
	}
	return out
}

func modifierList(fn *model.Function) []string {
	if len(fn.Modifiers) == 0 {
		return []string{}
	}
	return append([]string(nil), fn.Modifiers...)
}

// findingSpec carries what a detector knows about one finding.
type findingSpec struct {
	Contract    string
	Function    *model.Function
	Modifier    *model.Function
	Line        int
	Severity    model.Severity
	Title       string
	Description string
	Remediation string
	Scenario    string
	Complexity  model.ExploitComplexity
	SWC         string
	Match       string
	Evidence    map[string]any
	References  []string
}

// emit builds the immutable finding for spec.
func (d *Detector) emit(spec findingSpec) model.Web3Finding {
	swc := spec.SWC
	if swc == "" {
		swc = d.SWCID
	}
	evidence := spec.Evidence
	if evidence == nil {
		evidence = map[string]any{}
	}
	fnName := ""
	if spec.Function != nil {
		fnName = spec.Function.DisplayName()
		if spec.Function.Name != "" {
			sig := util.Signature(spec.Function.Name, paramTypes(spec.Function))
			evidence["signature"] = sig
			evidence["selector"] = util.Selector(sig)
		}
	} else if spec.Modifier != nil {
		fnName = spec.Modifier.Name
		evidence["modifier"] = spec.Modifier.Name
	}
	var refs []string
	if u := SWCURL(swc); u != "" {
		refs = append(refs, u)
	}
	refs = append(refs, spec.References...)
	return model.Web3Finding{
		SecurityFinding: model.SecurityFinding{
			ID:          uuid.NewString(),
			Severity:    spec.Severity,
			Title:       spec.Title,
			Description: spec.Description,
			Remediation: spec.Remediation,
			References:  refs,
			Category:    model.CategorySmartContract,
			Timestamp:   time.Now().UTC(),
			Evidence:    evidence,
		},
		VulnerabilityType: d.VulnType,
		ContractName:      spec.Contract,
		FunctionName:      fnName,
		LineNumber:        spec.Line,
		SWCID:             swc,
		ExploitScenario:   spec.Scenario,
		ExploitComplexity: spec.Complexity,
		Detector:          d.Name,
		Confidence:        d.Confidence,
		Fingerprint:       util.Fingerprint(d.Name, spec.Contract, fnName, spec.Line, spec.Title+"|"+spec.Match),
	}
}

// bodyLine maps an offset in fn.Body to a 1-based source line.
func bodyLine(pc *model.ParsedContract, fn *model.Function, offset int) int {
	return util.BodyLine(pc.Source, fn.Body, fn.LineStart, offset)
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
