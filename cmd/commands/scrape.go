package commands

// Command to run a single scrape cycle (or ingest a CSV file) and save the snapshot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/scraper"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape cycle and save the holder snapshot",
	Long:  `Run one scrape cycle with retries against the configured source. With --csv the holders are read from the given file instead.`,
	RunE:  runScrape,
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.LogError("Failed to save state", zap.Error(err))
		}
	}()

	ctrl, err := buildController(cfg, st, nil)
	if err != nil {
		return err
	}

	res := ctrl.ScrapeHolders(ctx)
	if res.Outcome != scraper.OutcomeCommitted {
		return fmt.Errorf("scrape %s after %d attempts: %w", res.Outcome, res.Attempts, res.Err)
	}

	stats := st.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d holders (sold: %d, OG: %d) to %s\n",
		len(res.Wallets), stats.SoldWalletsCount, stats.OGWalletsCount, cfg.Store.Path)
	logging.LogSuccess("Scrape completed",
		zap.Int("wallets", len(res.Wallets)),
		zap.Int("attempts", res.Attempts),
		zap.Int("totalWalletsProcessed", stats.TotalWalletsProcessed))
	return nil
}
