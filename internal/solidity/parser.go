package solidity

import (
	"regexp"
	"strings"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/util"
)

var (
	rePragma   = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
	reContract = regexp.MustCompile(`\b(?:abstract\s+)?(contract|library|interface)\s+([A-Za-z_$][\w$]*)\s*(?:is\s+([^{]*))?\{`)
)

var visibilities = map[string]bool{
	model.VisibilityPublic: true, model.VisibilityExternal: true,
	model.VisibilityInternal: true, model.VisibilityPrivate: true,
}

var mutabilities = map[string]bool{
	model.MutabilityView: true, model.MutabilityPure: true,
	model.MutabilityPayable: true, "constant": true,
}

// skipped header words that are neither visibility, mutability nor modifiers
var headerKeywords = map[string]bool{
	"function": true, "constructor": true, "fallback": true, "receive": true,
	"virtual": true, "override": true, "returns": true,
}

var stateVarKeywords = map[string]bool{
	"public": true, "private": true, "internal": true, "constant": true,
	"immutable": true, "override": true, "transient": true,
}

var nonVarDecl = []string{"struct", "enum", "event", "error", "import", "pragma", "type"}

// Parse builds the contract model for one source unit. It never fails: text
// it cannot make sense of is skipped.
func Parse(source string) *model.ParsedContract {
	masked := Mask(source)
	pc := &model.ParsedContract{Source: source}
	if m := rePragma.FindStringSubmatch(masked); m != nil {
		pc.Pragma = strings.TrimSpace(m[1])
	}
	pos := 0
	for pos < len(masked) {
		loc := reContract.FindStringSubmatchIndex(masked[pos:])
		if loc == nil {
			break
		}
		open := pos + loc[1] - 1
		end := matchClose(masked, open)
		if end < 0 {
			end = len(masked) - 1
		}
		c := model.Contract{Name: masked[pos+loc[4] : pos+loc[5]]}
		if loc[6] >= 0 {
			c.Inherits = parseInherits(masked[pos+loc[6] : pos+loc[7]])
		}
		parseMembers(source, masked, open+1, end, &c)
		pc.Contracts = append(pc.Contracts, c)
		pos = end + 1
	}
	return pc
}

func parseInherits(list string) []string {
	var out []string
	for _, part := range splitTopLevel(list, ',') {
		part = strings.TrimSpace(part)
		if i := strings.Index(part, "("); i >= 0 {
			part = strings.TrimSpace(part[:i])
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMembers walks the top-level declarations of a contract body in
// masked[from:to], splitting on ';' and on brace-delimited blocks.
func parseMembers(source, masked string, from, to int, c *model.Contract) {
	segStart := from
	for i := from; i < to; i++ {
		switch masked[i] {
		case ';':
			handleDeclaration(source, masked, segStart, i, -1, -1, c)
			segStart = i + 1
		case '{':
			end := matchClose(masked[:to], i)
			if end < 0 {
				end = to - 1
			}
			handleDeclaration(source, masked, segStart, i, i, end, c)
			i = end
			segStart = end + 1
		}
	}
}

func handleDeclaration(source, masked string, start, headerEnd, bodyOpen, bodyClose int, c *model.Contract) {
	header := masked[start:headerEnd]
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return
	}
	lead := leadingWord(trimmed)
	switch lead {
	case "function", "constructor", "fallback", "receive":
		offset := start + strings.Index(header, lead)
		fn := parseFunction(trimmed, lead, c.Name)
		fn.LineStart = util.LineAt(source, offset)
		if bodyOpen >= 0 {
			fn.Body = source[bodyOpen : bodyClose+1]
		}
		c.Functions = append(c.Functions, fn)
		return
	case "modifier":
		m := parseFunction(trimmed, lead, c.Name)
		m.Visibility = model.VisibilityInternal
		m.LineStart = util.LineAt(source, start+strings.Index(header, lead))
		if bodyOpen >= 0 {
			m.Body = source[bodyOpen : bodyClose+1]
		}
		c.Modifiers = append(c.Modifiers, m)
		return
	case "using":
		if lib := leadingWord(strings.TrimSpace(trimmed[len(lead):])); lib != "" && bodyOpen < 0 {
			c.Using = append(c.Using, lib)
		}
		return
	}
	if bodyOpen >= 0 {
		return
	}
	for _, kw := range nonVarDecl {
		if lead == kw {
			return
		}
	}
	if sv, ok := parseStateVariable(trimmed); ok {
		c.StateVariables = append(c.StateVariables, sv)
	}
}

func leadingWord(s string) string {
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return s[:i]
}

func parseFunction(header, lead, contractName string) model.Function {
	fn := model.Function{StateMutability: model.MutabilityNonPayable}
	rest := strings.TrimSpace(header[len(lead):])
	switch lead {
	case "function", "modifier":
		name := leadingWord(rest)
		rest = strings.TrimSpace(rest[len(name):])
		if name != contractName {
			fn.Name = name
		}
	case "fallback", "receive":
		fn.Name = lead
		fn.Visibility = model.VisibilityExternal
	}
	if strings.HasPrefix(rest, "(") {
		end := matchClose(rest, 0)
		if end > 0 {
			fn.Parameters = parseParameters(rest[1:end])
			rest = rest[end+1:]
		}
	}
	for _, tok := range headerTokens(rest) {
		word := tok
		if i := strings.Index(tok, "("); i >= 0 {
			word = tok[:i]
		}
		switch {
		case word == "":
		case visibilities[word]:
			fn.Visibility = word
		case mutabilities[word]:
			if word == "constant" {
				word = model.MutabilityView
			}
			fn.StateMutability = word
		case headerKeywords[word]:
		default:
			fn.Modifiers = append(fn.Modifiers, util.Compact(tok))
		}
	}
	if fn.Visibility == "" {
		fn.Visibility = model.VisibilityPublic
	}
	return fn
}

func parseParameters(list string) []model.Parameter {
	var out []model.Parameter
	for _, part := range splitTopLevel(list, ',') {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		p := model.Parameter{Type: strings.Join(fields, " ")}
		if last := fields[len(fields)-1]; len(fields) > 1 && isIdentifier(last) && !isLocation(last) {
			p.Name = last
			p.Type = strings.Join(fields[:len(fields)-1], " ")
		}
		out = append(out, p)
	}
	return out
}

func isLocation(s string) bool {
	return s == "memory" || s == "calldata" || s == "storage" || s == "payable" || s == "indexed"
}

func parseStateVariable(decl string) (model.StateVariable, bool) {
	if i := initializerIndex(decl); i >= 0 {
		decl = decl[:i]
	}
	decl = strings.TrimSpace(decl)
	// the name is the last identifier, the type everything before it minus keywords
	end := len(decl)
	start := end
	for start > 0 && isIdentByte(decl[start-1]) {
		start--
	}
	name := decl[start:end]
	if !isIdentifier(name) {
		return model.StateVariable{}, false
	}
	var typ []string
	for _, tok := range strings.Fields(decl[:start]) {
		if stateVarKeywords[tok] {
			continue
		}
		typ = append(typ, tok)
	}
	if len(typ) == 0 {
		return model.StateVariable{}, false
	}
	return model.StateVariable{Name: name, Type: strings.Join(typ, " ")}, true
}

// initializerIndex finds the '=' starting an initializer, skipping "=>", "==",
// and anything nested in brackets.
func initializerIndex(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && (s[i+1] == '>' || s[i+1] == '=') {
				i++
				continue
			}
			return i
		}
	}
	return -1
}
