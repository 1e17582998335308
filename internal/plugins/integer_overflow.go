package plugins

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/solidity"
)

const operand = `(?:[A-Za-z_$][\w$]*(?:\s*\[[^\]]*\]|\s*\.\s*[A-Za-z_$][\w$]*)*|0x[0-9a-fA-F]+|\d+(?:e\d+)?)`

var overflowPatterns = struct {
	Unchecked  *regexp.Regexp
	Arithmetic *regexp.Regexp
	Operator   *regexp.Regexp
	Left       *regexp.Regexp
	Right      *regexp.Regexp
	Compound   *regexp.Regexp
	PostIncr   *regexp.Regexp
	PreIncr    *regexp.Regexp
	SafeCall   *regexp.Regexp
	SafeBase   *regexp.Regexp
	Number     *regexp.Regexp
}{
	Unchecked:  regexp.MustCompile(`\bunchecked\s*\{`),
	Arithmetic: regexp.MustCompile(`[\w\])]\s*(?:\+\+|--|[-+*/%]=?)`),
	Operator:   regexp.MustCompile(`[-+*]`),
	Left:       regexp.MustCompile(`(` + operand + `)\s*$`),
	Right:      regexp.MustCompile(`^\s*(` + operand + `)`),
	Compound:   regexp.MustCompile(`(` + operand + `)\s*([-+*])=`),
	PostIncr:   regexp.MustCompile(`([A-Za-z_$][\w$]*(?:\s*\[[^\]]*\]|\s*\.\s*[A-Za-z_$][\w$]*)*)\s*(\+\+|--)`),
	PreIncr:    regexp.MustCompile(`(\+\+|--)\s*([A-Za-z_$][\w$]*)`),
	SafeCall:   regexp.MustCompile(`\.\s*(add|sub|mul|div|mod)\s*\(`),
	SafeBase:   regexp.MustCompile(`(?i)safemath`),
	Number:     regexp.MustCompile(`^(0x[0-9a-fA-F]+|\d+(?:e\d+)?)$`),
}

// globals are built-in namespaces whose members are not attacker-sized
// storage values.
var globals = map[string]bool{
	"msg": true, "block": true, "tx": true, "abi": true, "this": true, "now": true,
	"type": true,
}

// arithmeticOp is one candidate overflow site.
type arithmeticOp struct {
	Offset   int
	Op       string
	Text     string
	Operands []string
}

func (d *Detector) analyzeIntegerOverflow(pc *model.ParsedContract) []model.Web3Finding {
	if !solidity.IsVulnerableVersion(pc.Pragma) {
		return d.uncheckedBlocks(pc)
	}
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		safe := usesSafeMath(c)
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			if fn.Body == "" {
				continue
			}
			ops := riskyArithmetic(fn)
			if len(ops) == 0 {
				continue
			}
			sev := model.SeverityHigh
			if safe {
				sev = model.SeverityMedium
			}
			var texts []string
			for _, op := range ops {
				texts = append(texts, op.Text)
			}
			first := ops[0]
			out = append(out, d.emit(findingSpec{
				Contract: c.Name,
				Function: fn,
				Line:     bodyLine(pc, fn, first.Offset),
				Severity: sev,
				Title:    "Integer Overflow/Underflow",
				Description: fmt.Sprintf("Function %s performs unchecked arithmetic (%s) on user-influenced or storage values "+
					"under pragma %q, which predates built-in overflow checks.", fn.DisplayName(), first.Text, pragmaOrUnknown(pc.Pragma)),
				Remediation: "Upgrade to Solidity >=0.8.0 or wrap the arithmetic in SafeMath (a.add(b), a.sub(b), a.mul(b)).",
				Scenario:    "An attacker supplies values that make the result wrap around, e.g. underflowing a balance to a huge number.",
				Complexity:  model.ComplexityLow,
				Match:       strings.Join(texts, "|"),
				Evidence: map[string]any{
					"operations":   texts,
					"operator":     first.Op,
					"operands":     first.Operands,
					"pragma":       pc.Pragma,
					"usesSafeMath": safe,
				},
			}))
		}
	}
	return out
}

// usesSafeMath reports whether c attaches or inherits a SafeMath-style library.
func usesSafeMath(c *model.Contract) bool {
	for _, name := range append(append([]string(nil), c.Using...), c.Inherits...) {
		if overflowPatterns.SafeBase.MatchString(name) {
			return true
		}
	}
	return false
}

func pragmaOrUnknown(p string) string {
	if p == "" {
		return "unspecified"
	}
	return p
}

// uncheckedBlocks reports one finding per unchecked block that contains
// arithmetic.
func (d *Detector) uncheckedBlocks(pc *model.ParsedContract) []model.Web3Finding {
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			code := codeOf(fn)
			for _, loc := range overflowPatterns.Unchecked.FindAllStringIndex(code, -1) {
				open := loc[1] - 1
				end := closingBrace(code, open)
				if end < 0 {
					end = len(code)
				}
				inner := code[open+1 : end]
				m := overflowPatterns.Arithmetic.FindStringIndex(inner)
				if m == nil {
					continue
				}
				stmt := statementAt(fn.Body, code, open+1+m[0])
				out = append(out, d.emit(findingSpec{
					Contract: c.Name,
					Function: fn,
					Line:     bodyLine(pc, fn, loc[0]),
					Severity: model.SeverityMedium,
					Title:    "Arithmetic in Unchecked Block",
					Description: fmt.Sprintf("Function %s performs arithmetic inside an unchecked block, "+
						"disabling the compiler's overflow checks locally.", fn.DisplayName()),
					Remediation: "Keep unchecked blocks to operations proven not to overflow (e.g. loop counters bounded by a length) and document the bound.",
					Scenario:    "If an operand inside the block can be influenced by a caller, the result silently wraps around.",
					Complexity:  model.ComplexityMedium,
					Match:       fmt.Sprintf("%d:%s", loc[0], stmt),
					Evidence: map[string]any{
						"matched": truncate(stmt, 160),
						"block":   truncate(strings.TrimSpace(fn.Body[loc[0]:min(end+1, len(fn.Body))]), 200),
						"pragma":  pc.Pragma,
					},
				}))
			}
		}
	}
	return out
}

func closingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// riskyArithmetic collects the arithmetic sites of fn that are not wrapped
// in SafeMath calls and touch at least one risky operand.
func riskyArithmetic(fn *model.Function) []arithmeticOp {
	code := codeOf(fn)
	var ops []arithmeticOp
	seen := map[int]bool{}
	add := func(offset int, op string, text string, operands ...string) {
		if seen[offset] {
			return
		}
		if overflowPatterns.SafeCall.MatchString(statementAt(code, code, offset)) {
			return
		}
		var risky []string
		for _, o := range operands {
			if isRiskyOperand(fn, code, o, offset) {
				risky = append(risky, o)
			}
		}
		if len(risky) == 0 {
			return
		}
		seen[offset] = true
		ops = append(ops, arithmeticOp{Offset: offset, Op: op, Text: strings.Join(strings.Fields(text), " "), Operands: risky})
	}
	for _, m := range overflowPatterns.Compound.FindAllStringSubmatchIndex(code, -1) {
		operands := []string{code[m[2]:m[3]]}
		end := m[1]
		if r := overflowPatterns.Right.FindStringSubmatchIndex(code[m[1]:]); r != nil {
			operands = append(operands, code[m[1]+r[2]:m[1]+r[3]])
			end = m[1] + r[1]
		}
		add(m[0], code[m[4]:m[5]]+"=", code[m[0]:end], operands...)
	}
	for _, loc := range overflowPatterns.Operator.FindAllStringIndex(code, -1) {
		if l, r, op, ok := binaryOperands(code, loc[0]); ok {
			start, end := loc[0], loc[1]
			var operands []string
			if l != nil {
				start = l[0]
				operands = append(operands, code[l[0]:l[1]])
			}
			if r != nil {
				end = r[1]
				operands = append(operands, code[r[0]:r[1]])
			}
			add(start, op, code[start:end], operands...)
		}
	}
	for _, m := range overflowPatterns.PostIncr.FindAllStringSubmatchIndex(code, -1) {
		add(m[0], code[m[4]:m[5]], code[m[0]:m[1]], code[m[2]:m[3]])
	}
	for _, m := range overflowPatterns.PreIncr.FindAllStringSubmatchIndex(code, -1) {
		add(m[0], code[m[2]:m[3]], code[m[0]:m[1]], code[m[4]:m[5]])
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Offset < ops[j].Offset })
	return ops
}

// binaryOperands inspects the binary operator at opAt and returns the spans
// of the operands on each side within the enclosing statement. Compound
// assignments, increments, exponentiation and unary signs are rejected.
func binaryOperands(code string, opAt int) (left, right []int, op string, ok bool) {
	c := code[opAt]
	if next := opAt + 1; next < len(code) && (code[next] == '=' || code[next] == c) {
		return nil, nil, "", false
	}
	if opAt > 0 && code[opAt-1] == c {
		return nil, nil, "", false
	}
	stmt := strings.LastIndexAny(code[:opAt], ";{}") + 1
	if m := overflowPatterns.Left.FindStringSubmatchIndex(code[stmt:opAt]); m != nil {
		left = []int{stmt + m[2], stmt + m[3]}
	} else {
		prev := strings.TrimRight(code[stmt:opAt], " \t\r\n")
		if prev == "" || (prev[len(prev)-1] != ')' && prev[len(prev)-1] != ']') {
			return nil, nil, "", false
		}
	}
	if m := overflowPatterns.Right.FindStringSubmatchIndex(code[opAt+1:]); m != nil {
		right = []int{opAt + 1 + m[2], opAt + 1 + m[3]}
	}
	if left == nil && right == nil {
		return nil, nil, "", false
	}
	return left, right, string(c), true
}

// isRiskyOperand applies the textual storage heuristic: parameters are risky,
// numbers and globals are not, anything else is risky unless it was declared
// as a local before offset.
func isRiskyOperand(fn *model.Function, code, operand string, offset int) bool {
	operand = strings.TrimSpace(operand)
	if overflowPatterns.Number.MatchString(operand) {
		return false
	}
	base := operand
	if i := strings.IndexAny(base, "[. \t\n"); i >= 0 {
		base = base[:i]
	}
	if globals[base] {
		return false
	}
	if fn.HasParameter(base) {
		return true
	}
	return !declaredLocally(code, base, offset)
}
