package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscan/internal/logging"
	"github.com/xab-mack/contractscan/internal/model"
)

const reentrantBank = `pragma solidity ^0.8.0;

contract Bank {
    mapping(address => uint256) public balance;

    function withdraw() external {
        uint256 amount = balance[msg.sender];
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok, "transfer failed");
        balance[msg.sender] = 0;
    }
}
`

func callTool(t *testing.T, h func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error), args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	var req mcplib.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestScanSource_ReturnsReport(t *testing.T) {
	h := handleScanSource(t.TempDir(), logging.Nop())
	res := callTool(t, h, map[string]any{"source": reentrantBank, "detectors": "reentrancy"})
	require.False(t, res.IsError, text(t, res))

	var rep model.Report
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rep))
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "reentrancy", rep.Findings[0].Detector)
	assert.Equal(t, 8, rep.Findings[0].LineNumber)
}

func TestScanSource_Threshold(t *testing.T) {
	h := handleScanSource(t.TempDir(), logging.Nop())
	res := callTool(t, h, map[string]any{"source": reentrantBank, "threshold": "CRITICAL"})
	require.False(t, res.IsError, text(t, res))

	var rep model.Report
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rep))
	for _, f := range rep.Findings {
		assert.Equal(t, model.SeverityCritical, f.Severity)
	}
}

func TestScanSource_ThresholdSummaryMatchesFindings(t *testing.T) {
	src := reentrantBank + `
contract Gate {
    address owner;

    function enter() external {
        require(tx.origin == owner);
    }
}
`
	h := handleScanSource(t.TempDir(), logging.Nop())
	res := callTool(t, h, map[string]any{"source": src, "threshold": "critical"})
	require.False(t, res.IsError, text(t, res))

	var rep model.Report
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rep))
	require.NotEmpty(t, rep.Findings)
	assert.Equal(t, len(rep.Findings), rep.Summary.Total)
	assert.Equal(t, rep.Summary.Total, rep.Summary.Critical)
	assert.Zero(t, rep.Summary.High)
}

func TestScanSource_Errors(t *testing.T) {
	h := handleScanSource(t.TempDir(), logging.Nop())
	assert.True(t, callTool(t, h, map[string]any{}).IsError)
	assert.True(t, callTool(t, h, map[string]any{"source": reentrantBank, "detectors": "gas-golf"}).IsError)
	assert.True(t, callTool(t, h, map[string]any{"source": reentrantBank, "threshold": "severe"}).IsError)
}

func TestScanPath_ScansProjectFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contracts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "contracts", "Bank.sol"), []byte(reentrantBank), 0o644))

	h := handleScanPath(root, logging.Nop())
	res := callTool(t, h, map[string]any{"path": "contracts", "detectors": "reentrancy"})
	require.False(t, res.IsError, text(t, res))

	var out model.ScanResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, []string{"Bank.sol"}, out.Files)
	require.Len(t, out.Findings, 1)
	assert.Equal(t, "Bank.sol", out.Findings[0].File)
}

func TestScanPath_RejectsEscapes(t *testing.T) {
	h := handleScanPath(t.TempDir(), logging.Nop())
	for _, p := range []string{"../elsewhere", "/etc", "a/../../b"} {
		res := callTool(t, h, map[string]any{"path": p})
		assert.True(t, res.IsError, p)
	}
}

func TestListDetectors(t *testing.T) {
	res := callTool(t, handleListDetectors(), nil)
	var got []detectorInfo
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 6)
	assert.Equal(t, "reentrancy", got[0].Name)
	assert.Equal(t, "SWC-107", got[0].SWCID)
	assert.Equal(t, "Reentrancy", got[0].SWCTitle)
}

func TestDetectorsResource(t *testing.T) {
	contents, err := handleDetectorsResource(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, detectorsURI, tc.URI)
	assert.Contains(t, tc.Text, "flash-loan")
}
