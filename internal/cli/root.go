// Package cli provides the command-line interface for thermopipe.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"thermopipe/internal/config"
	"thermopipe/internal/pipeline"
	"thermopipe/internal/store"
	"thermopipe/internal/toolexec"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	cfgFile string
	verbose bool

	// Loaded configuration and logger, shared by all commands.
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "thermopipe",
	Short: "Batch thermochemistry pipeline",
	Long: `Thermopipe automates a multi-stage computational chemistry workflow:
it retrieves a 3D structure for each molecule, converts formats, runs a
conformational search, computes the PM7 heat of formation, and stores
one deduplicated row per unique molecule in a tabular database.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.ConsoleLevel = "DEBUG"
		}

		logger, logCleanup = config.SetupLogger(cfg.Logging)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// openStore returns the computed-results store under the configured path.
func openStore() *store.Store {
	return store.Open(cfg.Database.PM7Path, logger)
}

// newBatchRunner wires the full pipeline: toolchain, store, orchestrator.
func newBatchRunner(workers int) *pipeline.BatchRunner {
	if workers < 1 {
		workers = cfg.Batch.Workers
	}
	tools := toolexec.NewToolchain(cfg, logger)
	orch := pipeline.NewOrchestrator(tools, openStore(), cfg, logger)
	return pipeline.NewBatchRunner(orch, workers, logger)
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(singleCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(validateCmd)
}
