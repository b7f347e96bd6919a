// Command foundrygate drives the Foundry Local invocation gateway.
package main

import (
	"fmt"
	"os"

	"foundrygate/internal/config"
	"foundrygate/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "foundrygate",
	Short: "Resilient gateway to the Foundry Local runtime",
	Long: `foundrygate runs conversations through the Foundry Local CLI.

Every launch forces CPU execution and injects a sanitized runtime version so
the runtime never trips over its own malformed CUDA version report. When the
primary runtime fails, the CPU-only wrapper (foundry-cpu) is tried once.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		opts := logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			File:       cfg.Logging.File,
			Categories: cfg.Logging.Categories,
		}
		if verbose {
			opts.DebugMode = true
			opts.Level = "debug"
		}
		if err := logging.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.BootDebug("Loaded config from %s (provider=%s, model=%s)", configPath, cfg.ProviderName, cfg.ProviderModel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging and state tracing")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "foundrygate.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sanitizeVersionCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
