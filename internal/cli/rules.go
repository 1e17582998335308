package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xab-mack/contractscan/internal/plugins"
	"github.com/xab-mack/contractscan/internal/report"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "List available detectors"}
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in detectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := plugins.NewRegistry()
			reg.RegisterBuiltin()
			if asJSON {
				var rules []report.RuleInfo
				for _, d := range reg.Detectors() {
					rules = append(rules, ruleInfo(d))
				}
				return report.WriteJSON(cmd.OutOrStdout(), rules)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSWC\tCONFIDENCE\tDESCRIPTION")
			for _, d := range reg.Detectors() {
				swc := d.SWCID
				if swc == "" {
					swc = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", d.Name, swc, d.Confidence, d.Description)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.AddCommand(list)
	return cmd
}
