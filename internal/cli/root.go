/*
PURPOSE:
  Defines the root Cobra command for the Forest Energy CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Logging must be configured before any subcommand runs.
  - Every subcommand loads the same config and applies the same
    directory overrides.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/forest-energy/main.go
  - Calls: Child commands (export, correlate, stats, sync, list-logs, serve)
  - Modifies: Global configuration state (temporarily, until passed down).

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/forest-energy/main.go
  - internal/config/config.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"
	"time"

	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/output"
	"github.com/spf13/cobra"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logLevel  string
	logFormat string

	dataDirOverride   string
	outputDirOverride string
	offsetOverride    time.Duration

	rootCmd = &cobra.Command{
		Use:   "forest-energy",
		Short: "Correlates inference runs with power telemetry",
		Long: `Attributes measured energy to LLM inference runs by joining job logs with
CPU/GPU power sensor logs, and exports canonical power traces for the
visualization client. Use 'export --help' for the main pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return output.Configure(os.Stderr, logLevel, logFormat)
		},
	}
)

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads the config file, applies the global overrides and then
// the command's own, and validates the result.
func loadConfig(cmd *cobra.Command, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	if outputDirOverride != "" {
		cfg.OutputDir = outputDirOverride
	}
	if cmd.Flags().Changed("local-offset") {
		cfg.LocalOffset = offsetOverride
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./forest_energy.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&dataDirOverride, "data-dir", "", "Directory holding raw_cpu_power_*/raw_gpu_power_* logs")
	rootCmd.PersistentFlags().StringVarP(&outputDirOverride, "output-dir", "o", "", "Output directory for reports and exports")
	rootCmd.PersistentFlags().DurationVar(&offsetOverride, "local-offset", 0, "Collector local clock minus UTC, e.g. -5h")
}
