package plugins

import (
	"fmt"
	"regexp"

	"github.com/xab-mack/contractscan/internal/model"
)

var oraclePatterns = struct {
	Gate         *regexp.Regexp
	RoundData    *regexp.Regexp
	Freshness    *regexp.Regexp
	Positivity   *regexp.Regexp
	SingleSource *regexp.Regexp
	MultiSource  *regexp.Regexp
	External     *regexp.Regexp
	AMMPricing   *regexp.Regexp
	TWAP         *regexp.Regexp
}{
	Gate:      regexp.MustCompile(`(?i)(oracle|price|aggregatorv3interface|latestrounddata|latestanswer|chainlink|getreserves)`),
	RoundData: regexp.MustCompile(`\.\s*latestRoundData\s*\(`),
	Freshness: regexp.MustCompile(`(?i)((updatedAt|answeredInRound)\s*(<|>|<=|>=|==|!=)` +
		`|(<|>|<=|>=|==|!=)\s*(updatedAt|answeredInRound)` +
		`|stale|heartbeat|freshness|maxdelay|max_delay|maxage|max_age)`),
	Positivity: regexp.MustCompile(`(?i)(\b\w*(price|answer|rate)\w*\s*\)?\s*(>|>=|!=)\s*0\b` +
		`|\b0\s*(<|<=|!=)\s*\(?\s*\w*(price|answer|rate)\w*` +
		`|\b\w*(price|answer|rate)\w*\s*\)?\s*(<=|==)\s*0\b)`),
	SingleSource: regexp.MustCompile(`(?i)\b\w*(oracle|pricefeed|feed|aggregator)\w*\s*(\([^)]*\))?\s*\.\s*` +
		`(latestRoundData|latestAnswer|getPrice|getLatestPrice|price|consult|read|getAssetPrice)\s*\(`),
	MultiSource: regexp.MustCompile(`(?i)(fallback|backup|secondary|median|aggregate\b|aggregation|average|twap|oracles\s*\[|sources|quorum)`),
	External:    regexp.MustCompile(`(?i)(chainlink|aggregatorv3interface|aggregatorinterface|pricefeed|price_feed|latestrounddata|latestanswer|oracle)`),
	AMMPricing:  regexp.MustCompile(`(?i)(getreserves\s*\(|\breserve[01]\b|\bslot0\s*\(|getamountsout\s*\(|getamountout\s*\(|sqrtpricex96)`),
	TWAP:        regexp.MustCompile(`(?i)(twap|observe\s*\(|consult\s*\(|pricecumulativelast|cumulative)`),
}

const oracleRef = "https://docs.chain.link/data-feeds/historical-data"

func (d *Detector) analyzeOracle(pc *model.ParsedContract) []model.Web3Finding {
	if !oraclePatterns.Gate.MatchString(pc.Source) {
		return nil
	}
	external := oraclePatterns.External.MatchString(pc.Source)
	twap := oraclePatterns.TWAP.MatchString(pc.Source)
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		spotLine := 0
		var spotFn *model.Function
		spotMatch := ""
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			if fn.Body == "" {
				continue
			}
			code := codeOf(fn)
			out = append(out, d.roundDataChecks(pc, c, fn, code)...)
			if loc := oraclePatterns.SingleSource.FindStringIndex(code); loc != nil && !oraclePatterns.MultiSource.MatchString(code) {
				stmt := statementAt(fn.Body, code, loc[0])
				out = append(out, d.emit(findingSpec{
					Contract: c.Name,
					Function: fn,
					Line:     bodyLine(pc, fn, loc[0]),
					Severity: model.SeverityMedium,
					Title:    "Single Oracle Source Dependency",
					Description: fmt.Sprintf("Function %s relies on a single oracle source with no fallback or aggregation. "+
						"An outage or manipulation of that source directly affects the contract.", fn.DisplayName()),
					Remediation: "Add a fallback or secondary oracle, take a median across sources, and bound deviations between them.",
					Scenario:    "The single feed is paused, deprecated or manipulated; the contract keeps consuming its value.",
					Complexity:  model.ComplexityHigh,
					Match:       stmt,
					Evidence:    map[string]any{"matched": truncate(stmt, 160)},
				}))
			}
			if spotFn == nil && !external && !twap {
				if loc := oraclePatterns.AMMPricing.FindStringIndex(code); loc != nil {
					spotFn = fn
					spotLine = bodyLine(pc, fn, loc[0])
					spotMatch = statementAt(fn.Body, code, loc[0])
				}
			}
		}
		if spotFn != nil {
			out = append(out, d.emit(findingSpec{
				Contract: c.Name,
				Function: spotFn,
				Line:     spotLine,
				Severity: model.SeverityHigh,
				Title:    "On-Chain Spot Price Oracle",
				Description: fmt.Sprintf("Contract %s derives prices from AMM reserves without an external oracle or TWAP. "+
					"Spot reserves can be moved within a single transaction.", c.Name),
				Remediation: "Use a decentralized oracle (e.g. Chainlink) or a time-weighted average price instead of spot reserves.",
				Scenario:    "An attacker skews the pool's reserves with a large swap or flash loan, interacts with the contract at the distorted price, then unwinds the swap.",
				Complexity:  model.ComplexityMedium,
				Match:       spotMatch,
				Evidence: map[string]any{
					"matched":  truncate(spotMatch, 160),
					"function": spotFn.DisplayName(),
				},
			}))
		}
	}
	return out
}

// roundDataChecks validates each latestRoundData consumer for freshness and
// price sanity checks.
func (d *Detector) roundDataChecks(pc *model.ParsedContract, c *model.Contract, fn *model.Function, code string) []model.Web3Finding {
	loc := oraclePatterns.RoundData.FindStringIndex(code)
	if loc == nil {
		return nil
	}
	stmt := statementAt(fn.Body, code, loc[0])
	line := bodyLine(pc, fn, loc[0])
	var out []model.Web3Finding
	if !oraclePatterns.Freshness.MatchString(code) {
		out = append(out, d.emit(findingSpec{
			Contract: c.Name,
			Function: fn,
			Line:     line,
			Severity: model.SeverityHigh,
			Title:    "Stale Oracle Price",
			Description: fmt.Sprintf("Function %s reads latestRoundData without checking updatedAt or answeredInRound. "+
				"A stale price is accepted as current.", fn.DisplayName()),
			Remediation: "Require block.timestamp - updatedAt <= heartbeat and answeredInRound >= roundId before using the answer.",
			Scenario:    "The feed stops updating during volatility; users borrow or liquidate against the outdated price.",
			Complexity:  model.ComplexityMedium,
			Match:       "stale|" + stmt,
			Evidence:    map[string]any{"matched": truncate(stmt, 160), "check": "freshness"},
			References:  []string{oracleRef},
		}))
	}
	if !oraclePatterns.Positivity.MatchString(code) {
		out = append(out, d.emit(findingSpec{
			Contract: c.Name,
			Function: fn,
			Line:     line,
			Severity: model.SeverityMedium,
			Title:    "Unvalidated Oracle Price",
			Description: fmt.Sprintf("Function %s uses the latestRoundData answer without checking that it is positive.",
				fn.DisplayName()),
			Remediation: "Require answer > 0 before converting or using the price.",
			Scenario:    "A zero or negative answer from a misbehaving feed is cast to an unsigned value and used for pricing.",
			Complexity:  model.ComplexityHigh,
			Match:       "positive|" + stmt,
			Evidence:    map[string]any{"matched": truncate(stmt, 160), "check": "positivity"},
			References:  []string{oracleRef},
		}))
	}
	return out
}
