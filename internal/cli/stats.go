package cli

import (
	"github.com/daryltucker/forest-energy/internal/engine"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize energy-delay product per backend and prompt template",
	Long: `Attributes energy to every run the same way 'export' does, then averages
the energy-delay product (joules x seconds) per backend and prompt template
and per run id. Lower is better.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, logOverrides(cmd))
		if err != nil {
			return err
		}
		return engine.Stats(cfg)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	addLogFlags(statsCmd)
}
