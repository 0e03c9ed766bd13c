package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <event-url>",
		Short: "Crawls a tournament page and ingests every series it contains",
		Long: `Walks the given event page (including child events such as group
stages and playoff brackets), scrapes each discovered series, and indexes
the resulting rounds into the configured storage tiers.`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	total, err := a.Discovery.IngestTournament(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("ingest tournament: %w", err)
	}
	a.Logger.Info("tournament ingestion finished",
		zap.String("event_url", args[0]),
		zap.Int("rounds", total))
	return nil
}
