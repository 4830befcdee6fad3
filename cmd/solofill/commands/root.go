package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/solofill/internal/gapfill"
	"github.com/wonny/solofill/pkg/config"
	"github.com/wonny/solofill/pkg/logger"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "solofill",
	Short: "solofill - neural-network gap filling for flux tower records",
	Long: `solofill Unified CLI

Fills gaps in flux tower time series with the SOLO toolchain
(SOFM -> SOLO -> SEQSOLO), window by window, and reports fit
statistics for every filled window.

Usage:
  go run ./cmd/solofill [command]

Examples:
  go run ./cmd/solofill run --session site.yaml
  go run ./cmd/solofill check --session site.yaml --fix
  go run ./cmd/solofill stats --session-id <id>
  go run ./cmd/solofill serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the process configuration and its logger
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

func defaultsFrom(cfg *config.Config) gapfill.Defaults {
	return gapfill.Defaults{WorkDir: cfg.Solo.WorkDir, BinDir: cfg.Solo.BinDir}
}
