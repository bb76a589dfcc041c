package cli

import (
	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/demo"
	"github.com/spf13/cobra"
)

var (
	addrOverride string
	mockMode     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live demo server",
	Long: `Serves the live demo API:
  POST /generate  {"prompt": "...", "backend": "cpu|gpu"}
                  replays a recorded trace of the backend and returns the
                  export document for that single run
  GET  /status    progress of the request in flight
  GET  /metrics   Prometheus metrics

Only one generate request runs at a time; others get 409 Conflict.`,
	Example: `  # Replay recorded traces from ./data
  forest-energy serve

  # No sensor logs needed
  forest-energy serve --mock --addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, func(cfg *config.Config) {
			if addrOverride != "" {
				cfg.Server.Addr = addrOverride
			}
			if mockMode {
				cfg.Server.Mock = true
			}
		})
		if err != nil {
			return err
		}
		return demo.ListenAndServe(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&addrOverride, "addr", "", "Listen address (default from config, :5000)")
	serveCmd.Flags().BoolVar(&mockMode, "mock", false, "Replay synthetic traces instead of recorded logs")
}
