package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/xab-mack/contractscan/internal/logging"
)

// NewContractScanMCPServer creates an MCP server exposing the scan tools and
// the detector catalog. projectPath bounds every path-based tool call.
func NewContractScanMCPServer(projectPath, version string, log logging.Logger) *server.MCPServer {
	if log == nil {
		log = logging.Nop()
	}
	s := server.NewMCPServer(
		"contractscan",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, projectPath, log)
	registerResources(s)

	return s
}
