/*
PURPOSE:
  Defines the 'export' subcommand.
  Builds the visualization document from the job and power logs.

REQUIREMENTS:
  User-specified:
  - Export every run with a canonical power trace.
  - specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Export()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or the document cannot be written.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> engine.Export.

USAGE:
  forest-energy export --latency-file data/latency_results.csv

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config yaml keys generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"time"

	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/engine"
	"github.com/spf13/cobra"
)

var (
	latencyFileOverride string
	powerLogOverride    string
	toleranceOverride   time.Duration
	pointsOverride      int
	exportFileOverride  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs with canonical power traces",
	Long: `Builds the JSON document consumed by the visualization client.
For every run in the job log:
1. Window: [start, start + latency) in UTC.
2. Extraction: raw sensor samples of the run's backend inside the window.
3. Fallback: runs without samples are matched to the power log by start
   time and get a flat trace of their mean power.
4. Resampling: every trace is interpolated to exactly --points values.

The document is written to a temporary file and renamed into place.`,
	Example: `  # Run with defaults (uses forest_energy.yaml)
  forest-energy export

  # Read logs from another directory and write elsewhere
  forest-energy export --data-dir /mnt/sensors -o ./exports

  # Shorter traces and a tighter fallback match
  forest-energy export --points 50 --tolerance 2s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, logOverrides(cmd), func(cfg *config.Config) {
			if cmd.Flags().Changed("points") {
				cfg.TracePoints = pointsOverride
			}
			if exportFileOverride != "" {
				cfg.ExportFile = exportFileOverride
			}
		})
		if err != nil {
			return err
		}
		return engine.Export(cfg)
	},
}

// logOverrides applies the input log flags shared by the batch commands.
func logOverrides(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if latencyFileOverride != "" {
			cfg.LatencyFile = latencyFileOverride
		}
		if powerLogOverride != "" {
			cfg.PowerLogFile = powerLogOverride
		}
		if cmd.Flags().Changed("tolerance") {
			cfg.Tolerance = toleranceOverride
		}
	}
}

// addLogFlags registers the input log flags on a batch command.
func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&latencyFileOverride, "latency-file", "", "Job log CSV (overrides config)")
	cmd.Flags().StringVar(&powerLogOverride, "power-log", "", "Standalone power log CSV used for fallback matching")
	cmd.Flags().DurationVar(&toleranceOverride, "tolerance", 0, "Largest start-time delta for fallback matching (default from config, 10s)")
}

func init() {
	rootCmd.AddCommand(exportCmd)

	addLogFlags(exportCmd)
	exportCmd.Flags().IntVar(&pointsOverride, "points", 0, "Canonical trace length (default from config, 100)")
	exportCmd.Flags().StringVar(&exportFileOverride, "export-file", "", "Export document name inside the output directory")
}
