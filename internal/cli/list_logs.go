/*
PURPOSE:
  Defines the 'list-logs' subcommand.
  Helps debug sensor log discovery and clock offsets.

REQUIREMENTS:
  User-specified:
  - List discovered sensor logs.

  Implementation-discovered:
  - Useful validation step before a full export: shows the UTC session
    start derived from each file name.

ARCHITECTURE INTEGRATION:
  - Calls: internal/logs.Discover()

ERROR HANDLING:
  - Prints error if the data directory is missing and continues with the
    next backend.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  forest-energy list-logs --data-dir ...

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/logs/discovery.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"os"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
	"github.com/spf13/cobra"
)

var listLogsCmd = &cobra.Command{
	Use:   "list-logs",
	Short: "List discovered CPU/GPU sensor logs in processing order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		n := clock.New(cfg.LocalOffset)

		out := cmd.OutOrStdout()
		for _, b := range []model.Backend{model.BackendCPU, model.BackendGPU} {
			fmt.Fprintf(out, "Scanning %s for %s logs...\n", cfg.DataDir, b)
			files, err := logs.Discover(cfg.DataDir, b, n)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			for _, f := range files {
				fmt.Fprintf(out, "- %s  %s\n", output.FormatTime(f.StartedAt), f.Name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listLogsCmd)
}
