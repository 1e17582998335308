package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscan/internal/cache"
	"github.com/xab-mack/contractscan/internal/config"
	"github.com/xab-mack/contractscan/internal/engine"
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

const safeBank = `pragma solidity ^0.8.0;

contract Bank {
    mapping(address => uint256) public balance;

    function withdraw() external {
        uint256 amount = balance[msg.sender];
        balance[msg.sender] = 0;
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok, "transfer failed");
    }
}
`

func reentrancyOnly() config.Config {
	cfg := config.Default()
	cfg.Detectors = []string{"reentrancy"}
	cfg.TimeBudgetMs = 0
	return cfg
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func files(r *model.ScanResult) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.File)
	}
	return out
}

func TestEngine_DetectorSelection(t *testing.T) {
	assert.Len(t, engine.New(config.Default()).Detectors(), 6)

	cfg := reentrancyOnly()
	cfg.Confidence = map[string]float64{"reentrancy": 0.95}
	e := engine.New(cfg)
	require.Len(t, e.Detectors(), 1)
	assert.InDelta(t, 0.95, e.Detectors()[0].Confidence, 0.001)

	rep, err := e.ScanSource(context.Background(), reentrantBank)
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	assert.InDelta(t, 0.95, rep.Findings[0].Confidence, 0.001)
}

func TestEngine_ScanSource(t *testing.T) {
	e := engine.New(reentrancyOnly())

	rep, err := e.ScanSource(context.Background(), reentrantBank)
	require.NoError(t, err)
	require.Len(t, rep.Findings, 1)
	f := rep.Findings[0]
	assert.Equal(t, "reentrancy", f.Detector)
	assert.Equal(t, 8, f.LineNumber)
	assert.Empty(t, f.File)
	assert.Equal(t, 1, rep.Summary.Critical)
	assert.Equal(t, model.SeverityCritical, rep.Summary.Highest)

	rep, err = e.ScanSource(context.Background(), safeBank)
	require.NoError(t, err)
	assert.Empty(t, rep.Findings)
	assert.Zero(t, rep.Summary.Total)
}

func TestEngine_ScanContractNil(t *testing.T) {
	rep, err := engine.New(config.Default()).ScanContract(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Findings)
	assert.Zero(t, rep.Summary.Total)
}

func TestEngine_InputTooLarge(t *testing.T) {
	cfg := reentrancyOnly()
	cfg.MaxSourceBytes = 64
	e := engine.New(cfg)

	_, err := e.ScanSource(context.Background(), reentrantBank)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInputTooLarge)

	root := t.TempDir()
	writeFile(t, root, "Bank.sol", reentrantBank)
	res, err := e.Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	require.Len(t, res.Summary.Failures, 1)
	assert.Equal(t, "Bank.sol", res.Summary.Failures[0].File)
	assert.Contains(t, res.Summary.Failures[0].Error, "input too large")
}

func TestEngine_ScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "contracts/Vault.sol", reentrantBank)
	writeFile(t, root, "contracts/Bank.sol", reentrantBank)
	writeFile(t, root, "contracts/Safe.sol", safeBank)
	writeFile(t, root, "node_modules/dep/Bank.sol", reentrantBank)
	writeFile(t, root, "README.md", "not solidity")

	res, err := engine.New(reentrancyOnly()).Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"contracts/Bank.sol", "contracts/Safe.sol", "contracts/Vault.sol"}, res.Files)
	assert.Equal(t, []string{"contracts/Bank.sol", "contracts/Vault.sol"}, files(res))
	assert.Empty(t, res.Summary.Failures)
	assert.Equal(t, 2, res.Summary.ByDetector["reentrancy"])
	// same code in two files is two findings with one fingerprint
	assert.Equal(t, res.Findings[0].Fingerprint, res.Findings[1].Fingerprint)
}

func TestEngine_ScanSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Bank.sol", reentrantBank)
	res, err := engine.New(reentrancyOnly()).Scan(context.Background(), model.ScanRequest{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bank.sol"}, res.Files)
	assert.Equal(t, []string{"Bank.sol"}, files(res))
}

func TestEngine_ScanMissingPath(t *testing.T) {
	_, err := engine.New(reentrancyOnly()).Scan(context.Background(), model.ScanRequest{Path: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
}

func TestEngine_InlineSuppression(t *testing.T) {
	suppressed := strings.Replace(reentrantBank,
		"        (bool ok, )",
		"        // contractscan:ignore reentrancy audited, balance is pulled first\n        (bool ok, )", 1)
	otherRule := strings.Replace(reentrantBank,
		"        (bool ok, )",
		"        // contractscan:ignore oracle-manipulation\n        (bool ok, )", 1)

	root := t.TempDir()
	writeFile(t, root, "A.sol", suppressed)
	writeFile(t, root, "B.sol", otherRule)

	res, err := engine.New(reentrancyOnly()).Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"B.sol"}, files(res))
}

func TestEngine_InlineSuppressionInLaterContract(t *testing.T) {
	body := strings.TrimPrefix(reentrantBank, "pragma solidity ^0.8.0;\n")
	src := "pragma solidity ^0.8.0;\n" +
		strings.Replace(body, "contract Bank", "contract A", 1) +
		strings.Replace(strings.Replace(body, "contract Bank", "contract B", 1),
			"    function withdraw()", "    // contractscan:ignore reentrancy\n    function withdraw()", 1)

	root := t.TempDir()
	writeFile(t, root, "Pair.sol", src)

	res, err := engine.New(reentrancyOnly()).Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "A", res.Findings[0].ContractName)
	assert.Equal(t, 8, res.Findings[0].LineNumber)
}

func TestEngine_ConfigIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mocks/Bank.sol", reentrantBank)
	writeFile(t, root, "core/Bank.sol", reentrantBank)
	writeFile(t, root, "legacy/Bank.sol", reentrantBank)

	cfg := reentrancyOnly()
	cfg.Ignore = []config.IgnoreRule{
		{Rule: "reentrancy", Path: "mocks"},
		{Rule: "SWC-107", Path: "legacy", Expires: "2025-01-01"},
	}
	now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	res, err := engine.New(cfg, engine.WithClock(now)).Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"core/Bank.sol"}, files(res))

	later := func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	res, err = engine.New(cfg, engine.WithClock(later)).Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"core/Bank.sol", "legacy/Bank.sol"}, files(res))
}

func TestEngine_SeverityThreshold(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Bank.sol", reentrantBank)

	cfg := config.Default()
	cfg.TimeBudgetMs = 0
	cfg.SeverityThreshold = "critical"
	res, err := engine.New(cfg).Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	require.NotEmpty(t, res.Findings)
	for _, f := range res.Findings {
		assert.Equal(t, model.SeverityCritical, f.Severity)
	}
}

func TestEngine_Baseline(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Bank.sol", reentrantBank)
	e := engine.New(reentrancyOnly())

	first, err := e.Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	require.Len(t, first.Findings, 1)

	base := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, engine.WriteBaseline(base, first.Findings))

	second, err := e.Scan(context.Background(), model.ScanRequest{Path: root, Baseline: base})
	require.NoError(t, err)
	assert.Empty(t, second.Findings)

	writeFile(t, root, "Vault.sol", strings.Replace(reentrantBank, "Bank", "Vault", 1))
	third, err := e.Scan(context.Background(), model.ScanRequest{Path: root, Baseline: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vault.sol"}, files(third))
}

func TestEngine_BaselineArrayForm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Bank.sol", reentrantBank)
	e := engine.New(reentrancyOnly())
	first, err := e.Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	require.Len(t, first.Findings, 1)

	base := writeFile(t, t.TempDir(), "baseline.json", `["`+first.Findings[0].Fingerprint+`"]`)
	res, err := e.Scan(context.Background(), model.ScanRequest{Path: root, Baseline: base})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)

	bad := writeFile(t, t.TempDir(), "baseline.json", `{"fingerprints": 3}`)
	_, err = e.Scan(context.Background(), model.ScanRequest{Path: root, Baseline: bad})
	require.Error(t, err)
}

func TestEngine_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "A.sol", reentrantBank)
	writeFile(t, root, "B.sol", reentrantBank)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := engine.New(reentrancyOnly()).Scan(ctx, model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	require.Len(t, res.Summary.Failures, 2)
	for _, f := range res.Summary.Failures {
		assert.Contains(t, f.Error, "not started")
	}
}

func TestEngine_DeltaOnly(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	writeFile(t, root, "Old.sol", reentrantBank)
	_, err = wt.Add("Old.sol")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	writeFile(t, root, "New.sol", reentrantBank)

	e := engine.New(reentrancyOnly())
	res, err := e.Scan(context.Background(), model.ScanRequest{Path: root, DeltaOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"New.sol"}, res.Files)

	res, err = e.Scan(context.Background(), model.ScanRequest{Path: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"New.sol", "Old.sol"}, res.Files)
}

func TestEngine_DeltaOutsideRepoScansEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Bank.sol", reentrantBank)
	res, err := engine.New(reentrancyOnly()).Scan(context.Background(), model.ScanRequest{Path: root, DeltaOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bank.sol"}, res.Files)
}

func TestEngine_WithCache(t *testing.T) {
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	e := engine.New(reentrancyOnly(), engine.WithCache(store))

	first, err := e.ScanSource(context.Background(), reentrantBank)
	require.NoError(t, err)
	second, err := e.ScanSource(context.Background(), reentrantBank)
	require.NoError(t, err)
	require.Len(t, second.Findings, 1)
	assert.Equal(t, first.Findings[0].Fingerprint, second.Findings[0].Fingerprint)
}
