package plugins_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
)

const depositTemplate = `pragma solidity PRAGMA;
contract Token {
    mapping(address => uint256) balances;
    function deposit(address to, uint256 amount) public {
        BODY
    }
}
`

func tokenSource(pragma, body string) string {
	return strings.NewReplacer("PRAGMA", pragma, "BODY", body).Replace(depositTemplate)
}

func TestIntegerOverflow_LegacyPragmaFlagsParameterArithmetic(t *testing.T) {
	fs := analyze(t, plugins.KindIntegerOverflow, tokenSource("^0.7.0", "balances[to] = balances[to] + amount;"))
	require.Len(t, fs, 1)
	f := fs[0]
	assert.Equal(t, model.SeverityHigh, f.Severity)
	assert.Equal(t, "deposit", f.FunctionName)
	assert.Equal(t, 5, f.LineNumber)
	assert.Equal(t, "SWC-101", f.SWCID)
	assert.Equal(t, []string{"balances[to] + amount"}, f.Evidence["operations"])
	assert.Equal(t, []string{"balances[to]", "amount"}, f.Evidence["operands"])
}

func TestIntegerOverflow_SafeMathCallSuppresses(t *testing.T) {
	fs := analyze(t, plugins.KindIntegerOverflow, tokenSource("^0.7.0", "balances[to] = balances[to].add(amount);"))
	assert.Empty(t, fs)
}

func TestIntegerOverflow_CheckedPragmaOutsideUnchecked(t *testing.T) {
	fs := analyze(t, plugins.KindIntegerOverflow, tokenSource("^0.8.0", "balances[to] = balances[to] + amount;"))
	assert.Empty(t, fs)
}

func TestIntegerOverflow_CheckedPragmaInsideUnchecked(t *testing.T) {
	body := "unchecked {\n            balances[to] = balances[to] + amount;\n        }"
	fs := analyze(t, plugins.KindIntegerOverflow, tokenSource("^0.8.0", body))
	require.Len(t, fs, 1)
	assert.Equal(t, model.SeverityMedium, fs[0].Severity)
	assert.Equal(t, "Arithmetic in Unchecked Block", fs[0].Title)
	assert.Equal(t, 5, fs[0].LineNumber)
}

func TestIntegerOverflow_UncheckedWithoutArithmetic(t *testing.T) {
	body := "unchecked { balances[to] = amount; }"
	assert.Empty(t, analyze(t, plugins.KindIntegerOverflow, tokenSource("^0.8.4", body)))
}

func TestIntegerOverflow_SafeMathDowngrades(t *testing.T) {
	src := `pragma solidity ^0.6.12;
contract Token {
    using SafeMath for uint256;
    uint256 totalSupply;
    function mint(uint256 amount) external {
        totalSupply += amount;
    }
}
`
	fs := analyze(t, plugins.KindIntegerOverflow, src)
	require.Len(t, fs, 1)
	assert.Equal(t, model.SeverityMedium, fs[0].Severity)
	assert.Equal(t, "+=", fs[0].Evidence["operator"])
	assert.Equal(t, true, fs[0].Evidence["usesSafeMath"])
}

func TestIntegerOverflow_LocalsAndConstantsAreNotRisky(t *testing.T) {
	src := `pragma solidity 0.7.6;
contract Loop {
    function sum() external pure returns (uint256) {
        uint256 total = 0;
        for (uint256 i = 0; i < 10; i++) {
            total = total + 2;
        }
        return block.number + 1;
    }
}
`
	assert.Empty(t, analyze(t, plugins.KindIntegerOverflow, src))
}

func TestIntegerOverflow_MissingPragmaCountsAsLegacy(t *testing.T) {
	src := `contract Counter {
    uint256 count;
    function inc() external {
        count++;
    }
}
`
	fs := analyze(t, plugins.KindIntegerOverflow, src)
	require.Len(t, fs, 1)
	assert.Equal(t, model.SeverityHigh, fs[0].Severity)
	assert.Equal(t, 4, fs[0].LineNumber)
}

func TestIntegerOverflow_ChainedAndCompoundRightOperand(t *testing.T) {
	src := `pragma solidity ^0.7.0;
contract Ledger {
    uint256 total;
    function f(uint256 amount) external {
        uint256 a = 1;
        uint256 b = 2;
        total = a + b + amount;
    }
    function g(uint256 amount) external returns (uint256) {
        uint256 acc = 0;
        acc += amount;
        return acc;
    }
}
`
	fs := analyze(t, plugins.KindIntegerOverflow, src)
	require.Len(t, fs, 2)

	assert.Equal(t, "f", fs[0].FunctionName)
	assert.Equal(t, 7, fs[0].LineNumber)
	assert.Equal(t, []string{"b + amount"}, fs[0].Evidence["operations"])
	assert.Equal(t, []string{"amount"}, fs[0].Evidence["operands"])

	assert.Equal(t, "g", fs[1].FunctionName)
	assert.Equal(t, 11, fs[1].LineNumber)
	assert.Equal(t, "+=", fs[1].Evidence["operator"])
	assert.Equal(t, []string{"acc += amount"}, fs[1].Evidence["operations"])
	assert.Equal(t, []string{"amount"}, fs[1].Evidence["operands"])
}

func TestIntegerOverflow_UnarySignIsNotArithmetic(t *testing.T) {
	src := `pragma solidity ^0.7.0;
contract Signs {
    function neg(int256 x) external pure returns (int256) {
        int256 y = -x;
        return y;
    }
}
`
	assert.Empty(t, analyze(t, plugins.KindIntegerOverflow, src))
}

func TestIntegerOverflow_UnterminatedUncheckedBlock(t *testing.T) {
	for _, src := range []string{
		"pragma solidity ^0.8.0;\ncontract T {\n    function f() public {\n      unchecked {\n",
		"pragma solidity ^0.8.0;\ncontract T {\n    function f() public { unchecked {",
		"pragma solidity ^0.8.0;\ncontract T {\n    function f(uint256 x) public {\n      unchecked { x = x + 1;\n",
	} {
		assert.NotPanics(t, func() { analyze(t, plugins.KindIntegerOverflow, src) }, src)
	}
	fs := analyze(t, plugins.KindIntegerOverflow,
		"pragma solidity ^0.8.0;\ncontract T {\n    function f(uint256 x) public {\n      unchecked { x = x + 1;\n")
	require.Len(t, fs, 1)
	assert.Equal(t, 4, fs[0].LineNumber)
}

func TestIntegerOverflow_SafeMathScopedToContract(t *testing.T) {
	src := `pragma solidity ^0.6.12;
contract Safe {
    using SafeMath for uint256;
    uint256 supply;
    function mint(uint256 amount) external {
        supply += amount;
    }
}

contract Plain {
    uint256 supply;
    function mint(uint256 amount) external {
        supply += amount;
    }
}
`
	fs := analyze(t, plugins.KindIntegerOverflow, src)
	require.Len(t, fs, 2)
	assert.Equal(t, "Safe", fs[0].ContractName)
	assert.Equal(t, model.SeverityMedium, fs[0].Severity)
	assert.Equal(t, "Plain", fs[1].ContractName)
	assert.Equal(t, model.SeverityHigh, fs[1].Severity)
	assert.Equal(t, false, fs[1].Evidence["usesSafeMath"])
	assert.Equal(t, 13, fs[1].LineNumber)
}
