// Package cmd defines the CLI commands for the retake executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/app"
	"github.com/retakeai/retake/internal/config"
	"github.com/retakeai/retake/internal/logging"
)

var cfgFile string

type appKeyType struct{}

var appKey appKeyType

// newApp is a variable so tests can substitute a factory.
var newApp = app.New

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retake",
		Short: "Scrapes, indexes and searches competitive match VODs at round granularity.",
		Long: `retake ingests match pages from rib.gg, reconstructs per-round VOD
timestamps, and serves a semantic search API over the indexed rounds.`,

		// Runs before every subcommand: load config, build the logger,
		// wire the service container, and stash it in the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
				_ = a.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults to environment-only configuration)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newIngestCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger, logErr := logging.New(false)
		if logErr == nil {
			logger.Error("command execution failed", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}
