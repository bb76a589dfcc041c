package cli

import (
	"time"

	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/engine"
	"github.com/spf13/cobra"
)

var stepOverride time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync <cpu-log> <gpu-log>",
	Short: "Align a CPU and a GPU sensor log on a common time grid",
	Long: `Places one raw CPU log and one raw GPU log on a shared grid of --step.
Each grid point takes the nearest reading of each log within one step and
is left empty otherwise. File names must follow the collector naming
(raw_cpu_power_YYYYMMDD_HHMMSS.csv, raw_gpu_power_<stamp>.csv).`,
	Example: `  forest-energy sync data/raw_cpu_power_20251123_183500.csv data/raw_gpu_power_20251123_183500.csv --step 100ms`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("step") {
				cfg.SyncStep = stepOverride
			}
		})
		if err != nil {
			return err
		}
		return engine.Sync(cfg, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().DurationVar(&stepOverride, "step", 0, "Grid step (default from config, 200ms)")
}
