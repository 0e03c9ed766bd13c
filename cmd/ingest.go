package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <series-url>",
		Short: "Scrapes a single series page and indexes its rounds",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestCommand,
	}
}

func runIngestCommand(cmd *cobra.Command, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	recs, err := a.Discovery.ProcessSeries(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("process series: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("no usable rounds found at %s", args[0])
	}

	ids, err := a.Ingester.Ingest(cmd.Context(), recs, nil)
	if err != nil {
		return fmt.Errorf("index rounds: %w", err)
	}
	a.Logger.Info("series ingestion finished",
		zap.String("series_url", args[0]),
		zap.Int("rounds", len(ids)))
	return nil
}
