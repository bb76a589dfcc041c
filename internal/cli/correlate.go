package cli

import (
	"github.com/daryltucker/forest-energy/internal/engine"
	"github.com/spf13/cobra"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Match runs to power log rows and write a report",
	Long: `Pairs every run in the job log with the closest unconsumed row of the
standalone power log (same backend, start delta below --tolerance). Rows no
run claims are reported as power-only records.

Matching is greedy in job-log order, not an optimal assignment.`,
	Example: `  forest-energy correlate --tolerance 5s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, logOverrides(cmd))
		if err != nil {
			return err
		}
		return engine.CorrelateReport(cfg)
	},
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	addLogFlags(correlateCmd)
}
