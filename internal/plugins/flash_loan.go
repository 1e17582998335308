package plugins

import (
	"fmt"
	"regexp"

	"github.com/xab-mack/contractscan/internal/model"
)

var flashLoanPatterns = struct {
	Interaction  *regexp.Regexp
	PriceCalc    *regexp.Regexp
	Protection   *regexp.Regexp
	BalanceRatio *regexp.Regexp
}{
	Interaction: regexp.MustCompile(`\b(executeOperation|uniswapV2Call|uniswapV3FlashCallback|uniswapV3SwapCallback|pancakeCall|onFlashLoan` +
		`|IFlashLoanReceiver|IERC3156FlashBorrower|IFlashLoanSimpleReceiver|flashLoan\s*\()`),
	PriceCalc: regexp.MustCompile(`(getReserves\s*\(|\b_?reserve[01]\b|getAmountsOut\s*\(|getAmountOut\s*\(` +
		`|balanceOf\s*\((?:[^()]|\([^()]*\))*\)\s*[*/]|[*/]\s*[\w.]*balanceOf\s*\(` +
		`|\b(?:price|rate|quote|exchangeRate)\w*\s*=[^=]|\b\w+(?:Price|Rate|Quote)\w*\s*=[^=])`),
	Protection: regexp.MustCompile(`(?i)(twap|oracle|chainlink|pricefeed|price_feed|cooldown|timelock|consult\s*\(|observe\s*\()`),
	BalanceRatio: regexp.MustCompile(`(?i)(balanceOf\s*\((?:[^()]|\([^()]*\))*\)|\.balance\b|totalSupply\s*\(\s*\)|\btotalSupply\b)` +
		`\s*[*/]\s*[^;]*?(balanceOf\s*\(|\.balance\b|totalSupply)`),
}

func (d *Detector) analyzeFlashLoan(pc *model.ParsedContract) []model.Web3Finding {
	interaction := flashLoanPatterns.Interaction.MatchString(pc.Source)
	sev := model.SeverityHigh
	if interaction {
		sev = model.SeverityCritical
	}
	var out []model.Web3Finding
	for ci := range pc.Contracts {
		c := &pc.Contracts[ci]
		for fi := range c.Functions {
			fn := &c.Functions[fi]
			if fn.Body == "" {
				continue
			}
			code := codeOf(fn)
			if loc := flashLoanPatterns.PriceCalc.FindStringIndex(code); loc != nil && !flashLoanPatterns.Protection.MatchString(code) {
				stmt := statementAt(fn.Body, code, loc[0])
				out = append(out, d.emit(findingSpec{
					Contract: c.Name,
					Function: fn,
					Line:     bodyLine(pc, fn, loc[0]),
					Severity: sev,
					Title:    "Flash Loan Price Manipulation",
					Description: fmt.Sprintf("Function %s computes a price from manipulable on-chain state (reserves, balances or a spot quote) "+
						"with no TWAP, oracle or delay protection.", fn.DisplayName()),
					Remediation: "Price assets with a TWAP or an external oracle, and add delays or cooldowns between price-sensitive actions.",
					Scenario: "An attacker borrows a large amount through a flash loan, skews the pool or balance the price is read from, calls " +
						fn.DisplayName() + " at the distorted price, then repays the loan in the same transaction.",
					Complexity: model.ComplexityMedium,
					Match:      stmt,
					Evidence: map[string]any{
						"matched":              truncate(stmt, 160),
						"flashLoanInteraction": interaction,
					},
				}))
			}
			if loc := flashLoanPatterns.BalanceRatio.FindStringIndex(code); loc != nil {
				stmt := statementAt(fn.Body, code, loc[0])
				out = append(out, d.emit(findingSpec{
					Contract: c.Name,
					Function: fn,
					Line:     bodyLine(pc, fn, loc[0]),
					Severity: model.SeverityHigh,
					Title:    "Balance-Based Price Calculation",
					Description: fmt.Sprintf("Function %s derives a rate from a ratio of token balances or supply. "+
						"Donations and flash loans change these values instantly.", fn.DisplayName()),
					Remediation: "Track internal accounting instead of reading raw balances, or use an oracle price.",
					Scenario:    "An attacker donates or flash-borrows tokens to inflate the balance used in the ratio and redeems at the inflated rate.",
					Complexity:  model.ComplexityLow,
					Match:       "ratio|" + stmt,
					Evidence: map[string]any{
						"matched": truncate(stmt, 160),
						"pattern": "balance-ratio",
					},
				}))
			}
		}
	}
	return out
}
