package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/xab-mack/contractscan/internal/mcp"
	"github.com/xab-mack/contractscan/internal/logging"
)

func newMCPCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the contractscan MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(version))
	return cmd
}

func newMCPServeCmd(version string) *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the contractscan MCP server (stdio)",
		Long:  "Start the MCP server on stdio so coding assistants can scan contracts and list detectors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; logs go to stderr only
			log := logging.New(cmd.ErrOrStderr(), "warn")
			s := mcpadapter.NewContractScanMCPServer(projectPath, version, log)
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", ".", "Project path (defaults to current working directory)")

	return cmd
}
