package app

import (
	"github.com/spf13/cobra"

	"github.com/xab-mack/contractscan/internal/cli"
)

func BuildRoot(version string) *cobra.Command {
	root := &cobra.Command{
		Use:          "contractscan",
		Short:        "Static vulnerability scanner for Solidity smart contracts",
		Version:      version,
		SilenceUsage: true,
	}
	cli.AddCommands(root, version)
	return root
}
