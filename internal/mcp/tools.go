package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xab-mack/contractscan/internal/config"
	"github.com/xab-mack/contractscan/internal/engine"
	"github.com/xab-mack/contractscan/internal/logging"
	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
	"github.com/xab-mack/contractscan/internal/report"
)

var errOutsideProject = errors.New("path escapes the project root")

func registerTools(s *server.MCPServer, projectPath string, log logging.Logger) {
	s.AddTool(
		mcplib.NewTool("scan_source",
			mcplib.WithDescription("Scan Solidity source text and return the findings report as JSON"),
			mcplib.WithString("source",
				mcplib.Required(),
				mcplib.Description("Solidity source code"),
			),
			mcplib.WithString("detectors", mcplib.Description("Comma-separated detector names (default: all)")),
			mcplib.WithString("threshold", mcplib.Description("Minimum severity: critical, high, medium, low or info")),
		),
		handleScanSource(projectPath, log),
	)

	s.AddTool(
		mcplib.NewTool("scan_path",
			mcplib.WithDescription("Scan .sol files under a path inside the project and return the findings report as JSON"),
			mcplib.WithString("path", mcplib.Description("Path relative to the project root (default: the whole project)")),
			mcplib.WithBoolean("delta", mcplib.Description("Only scan files changed in the git worktree")),
			mcplib.WithString("threshold", mcplib.Description("Minimum severity: critical, high, medium, low or info")),
		),
		handleScanPath(projectPath, log),
	)

	s.AddTool(
		mcplib.NewTool("list_detectors",
			mcplib.WithDescription("List the available detectors with their SWC ids and default confidence"),
		),
		handleListDetectors(),
	)
}

// loadConfig reads the project config and applies per-call overrides.
func loadConfig(projectPath string, args map[string]any) (config.Config, error) {
	cfg, _, err := config.Load(projectPath)
	if err != nil {
		return cfg, err
	}
	if list, _ := args["detectors"].(string); list != "" {
		cfg.Detectors = nil
		for _, name := range strings.Split(list, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Detectors = append(cfg.Detectors, name)
			}
		}
	}
	if th, _ := args["threshold"].(string); th != "" {
		cfg.SeverityThreshold = strings.ToLower(th)
	}
	return cfg, cfg.Validate()
}

func handleScanSource(projectPath string, log logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		source, err := request.RequireString("source")
		if err != nil {
			return errorResult("source parameter is required"), nil
		}
		cfg, err := loadConfig(projectPath, request.GetArguments())
		if err != nil {
			return errorResult(err.Error()), nil
		}
		rep, err := engine.New(cfg, engine.WithLogger(log)).ScanSource(ctx, source)
		if err != nil {
			return errorResult(fmt.Sprintf("scan failed: %v", err)), nil
		}
		return jsonResult(report.Aggregate(report.FilterBySeverity(rep.Findings, cfg.Threshold()), rep.Summary.Failures))
	}
}

func handleScanPath(projectPath string, log logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args := request.GetArguments()
		rel, _ := args["path"].(string)
		target, err := withinProject(projectPath, rel)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		cfg, err := loadConfig(projectPath, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		delta, _ := args["delta"].(bool)
		res, err := engine.New(cfg, engine.WithLogger(log)).Scan(ctx, model.ScanRequest{Path: target, DeltaOnly: delta})
		if err != nil {
			return errorResult(fmt.Sprintf("scan failed: %v", err)), nil
		}
		return jsonResult(res)
	}
}

type detectorInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SWCID       string  `json:"swcId,omitempty"`
	SWCTitle    string  `json:"swcTitle,omitempty"`
	Confidence  float64 `json:"confidence"`
}

func detectorCatalog() []detectorInfo {
	var out []detectorInfo
	for _, d := range plugins.Builtin() {
		out = append(out, detectorInfo{
			Name:        d.Name,
			Description: d.Description,
			SWCID:       d.SWCID,
			SWCTitle:    plugins.SWCTitle(d.SWCID),
			Confidence:  d.Confidence,
		})
	}
	return out
}

func handleListDetectors() server.ToolHandlerFunc {
	return func(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return jsonResult(detectorCatalog())
	}
}

// withinProject resolves rel against root and rejects anything outside it.
func withinProject(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return absRoot, nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", errOutsideProject, rel)
	}
	target := filepath.Join(absRoot, rel)
	back, err := filepath.Rel(absRoot, target)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideProject, rel)
	}
	return target, nil
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
