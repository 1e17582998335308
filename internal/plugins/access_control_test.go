package plugins_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
)

const txOriginWallet = `pragma solidity ^0.8.0;
contract Wallet {
    address owner;
    function pay(address payable to, uint256 amount) public {
        require(tx.origin == owner);
        to.transfer(amount);
    }
}
`

func TestAccessControl_TxOriginInRequire(t *testing.T) {
	for _, name := range []string{"Wallet", "wallet", "WALLET"} {
		src := strings.Replace(txOriginWallet, "Wallet", name, 1)
		fs := withTitle(analyze(t, plugins.KindAccessControl, src), "Authorization Through tx.origin")
		require.Len(t, fs, 1, name)
		assert.Equal(t, model.SeverityHigh, fs[0].Severity)
		assert.Equal(t, "SWC-115", fs[0].SWCID)
		assert.Equal(t, 5, fs[0].LineNumber)
		assert.Equal(t, name, fs[0].ContractName)
	}
}

func TestAccessControl_TxOriginOnePerOccurrence(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Gate {
    address owner;
    function a() public view returns (bool) {
        if (tx.origin != owner) { return false; }
        return tx.origin == owner;
    }
    function b() public view returns (address) {
        return tx.origin;
    }
}
`
	fs := withTitle(analyze(t, plugins.KindAccessControl, src), "Authorization Through tx.origin")
	require.Len(t, fs, 2)
	assert.Equal(t, 5, fs[0].LineNumber)
	assert.Equal(t, 6, fs[1].LineNumber)
}

func TestAccessControl_UnprotectedSelfdestruct(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Killable {
    address owner;
    constructor() { owner = msg.sender; }
    function kill() public {
        selfdestruct(payable(msg.sender));
    }
    function safeKill() public onlyOwner {
        selfdestruct(payable(owner));
    }
}
`
	fs := analyze(t, plugins.KindAccessControl, src)
	require.Len(t, fs, 1)
	f := fs[0]
	assert.Equal(t, model.SeverityCritical, f.Severity)
	assert.Equal(t, "kill", f.FunctionName)
	assert.Equal(t, "SWC-106", f.SWCID)
	assert.Equal(t, 5, f.LineNumber)
	assert.Equal(t, "selfdestruct", f.Evidence["operation"])
	assert.Equal(t, "public", f.Evidence["visibility"])
	assert.Equal(t, []string{}, f.Evidence["modifiers"])
}

func TestAccessControl_InlineGuards(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Owned {
    address owner;
    function transferOwnership(address next) public {
        require(msg.sender == owner, "not owner");
        owner = next;
    }
    function upgradeTo(address impl) external {
        if (msg.sender != owner) revert();
        implementation = impl;
    }
    function grant(address who) external {
        require(hasRole(ADMIN, msg.sender));
        minters[who] = true;
    }
}
`
	assert.Empty(t, analyze(t, plugins.KindAccessControl, src))
}

func TestAccessControl_UnprotectedOwnershipChange(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Owned {
    address public owner;
    function setOwner(address next) external {
        owner = next;
    }
    function getOwner() external view returns (address) {
        return owner;
    }
}
`
	fs := analyze(t, plugins.KindAccessControl, src)
	require.Len(t, fs, 1)
	assert.Equal(t, "Unprotected Ownership Change", fs[0].Title)
	assert.Equal(t, "SWC-105", fs[0].SWCID)
	assert.Equal(t, []string{"ownership change"}, fs[0].Evidence["operations"])
}

func TestAccessControl_WithdrawByName(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Vault {
    function withdrawAll() external whenNotPaused {
        emit Drained();
    }
}
`
	fs := analyze(t, plugins.KindAccessControl, src)
	require.Len(t, fs, 1)
	assert.Equal(t, "withdraw", fs[0].Evidence["operation"])
	assert.Equal(t, []string{"whenNotPaused"}, fs[0].Evidence["modifiers"])
}

func TestAccessControl_TxOriginInModifier(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Treasury {
    address owner;
    modifier onlyOwner() {
        require(tx.origin == owner);
        _;
    }
    function sweep() external onlyOwner {
        payable(owner).transfer(address(this).balance);
    }
}
`
	fs := analyze(t, plugins.KindAccessControl, src)
	require.Len(t, fs, 1)
	f := fs[0]
	assert.Equal(t, "Authorization Through tx.origin", f.Title)
	assert.Equal(t, "Treasury", f.ContractName)
	assert.Equal(t, "onlyOwner", f.FunctionName)
	assert.Equal(t, 5, f.LineNumber)
	assert.Equal(t, "onlyOwner", f.Evidence["modifier"])
	assert.NotContains(t, f.Evidence, "selector")
	assert.Contains(t, f.Description, "Modifier onlyOwner")
}

func TestAccessControl_EvidenceKeepsUTF8(t *testing.T) {
	src := `pragma solidity ^0.8.0;
contract Gate {
    address owner;
    function enter() public view {
        require(tx.origin == owner, "` + strings.Repeat("é", 100) + `");
    }
}
`
	fs := withTitle(analyze(t, plugins.KindAccessControl, src), "Authorization Through tx.origin")
	require.Len(t, fs, 1)
	matched, ok := fs[0].Evidence["matched"].(string)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(matched), matched)
	assert.True(t, strings.HasSuffix(matched, "..."))
}
