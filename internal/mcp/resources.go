package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const detectorsURI = "contractscan://detectors"

func registerResources(s *server.MCPServer) {
	s.AddResource(
		mcplib.NewResource(
			detectorsURI,
			"Detectors",
			mcplib.WithResourceDescription("Catalog of the smart-contract detectors and their SWC mapping"),
			mcplib.WithMIMEType("application/json"),
		),
		handleDetectorsResource,
	)
}

func handleDetectorsResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(detectorCatalog(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling detectors: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      detectorsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
