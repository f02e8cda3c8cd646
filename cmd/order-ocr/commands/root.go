// Package commands implements the order-ocr CLI.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/spherical/order-ocr/cmd/order-ocr/ui"
	"github.com/spherical/order-ocr/internal/config"
	"github.com/spherical/order-ocr/internal/ledger"
	"github.com/spherical/order-ocr/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

// skipConfigAnnotation marks commands that run without loading config.
const skipConfigAnnotation = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "order-ocr",
	Short: "Extract product codes and quantities from scanned order documents",
	Long: `order-ocr reads purchase orders delivered as PDFs or images, recognizes the
product code and quantity of every order line, and writes the result as JSON.

Recognition runs offline with canned results until mock mode is turned off and
an OpenAI API key is configured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return nil
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Observability.LogLevel
		switch {
		case verbose:
			level = "debug"
		case cmd.Name() != "serve":
			// progress output owns the terminal
			level = "warn"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "order-ocr",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(processCmd, showCmd, historyCmd, serveCmd, backendsCmd, configCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openLedger opens the run ledger when enabled. Failures are reported and
// yield a nil store so processing can continue without it.
func openLedger(ctx context.Context) *ledger.Store {
	if !cfg.Ledger.Enabled {
		return nil
	}
	store, err := ledger.Open(ctx, cfg.Ledger.Driver, cfg.LedgerDSN())
	if err != nil {
		logger.Warn().Err(err).Msg("run ledger unavailable")
		return nil
	}
	return store
}
