package commands

// Command that runs the HTTP API together with the scrape and rotation
// monitors and the store's autosave/backup loop.
// Implements graceful shutdown for proper termination

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"holders-api/internal/api"
	logging "holders-api/internal/infra/log"
	"holders-api/internal/scraper"
	"holders-api/monitors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with auto-update and wallet rotation",
	Long:  `Run the holders API server. Holders are scraped at start and then periodically, a current wallet is rotated over the snapshot and the state is saved and backed up in the background.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logging.LogError("Failed to open store", zap.Error(err))
		return err
	}

	notifier, err := monitors.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		logging.LogWarn("Telegram notifier unavailable (continuing without it)", zap.Error(err))
		notifier = &monitors.TelegramNotifier{}
	}

	ctrl, err := buildController(cfg, st, notifier)
	if err != nil {
		return err
	}

	server := api.NewServer(st, ctrl, api.Options{
		Info: api.Info{
			Version:      cfg.Server.Version,
			TokenName:    cfg.Token.Name,
			TokenAddress: cfg.Token.Address,
		},
		WeightedRotate:  cfg.Rotation.Weighted,
		AutoUpdate:      cfg.Scraper.EnableAutoUpdate,
		UpdateInterval:  cfg.Scraper.UpdateInterval(),
		RateLimit:       cfg.Server.EnableRateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow(),
		RateLimitMax:    cfg.Server.RateLimitMaxRequests,
		Notifier:        notifier,
	})

	ready := make(chan struct{})
	var readyOnce sync.Once

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.Server.Port))
	})
	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		monitors.RunScrapeMonitor(gctx, ctrl, monitors.ScrapeOptions{
			AutoUpdate: cfg.Scraper.EnableAutoUpdate,
			Interval:   cfg.Scraper.UpdateInterval(),
			OnFirst:    func(scraper.Result) { readyOnce.Do(func() { close(ready) }) },
		})
		return nil
	})
	if cfg.Rotation.Enabled {
		g.Go(func() error {
			monitors.RunRotationMonitor(gctx, st, monitors.RotationOptions{
				Interval: cfg.Rotation.Interval(),
				Weighted: cfg.Rotation.Weighted,
				Ready:    ready,
			})
			return nil
		})
	}

	logging.LogSuccess("Holders API is running",
		zap.Int("port", cfg.Server.Port),
		zap.String("token", cfg.Token.Address))

	<-gctx.Done()
	logging.LogInfo("Shutdown signal received, gracefully stopping...")
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	var runErr error
	select {
	case runErr = <-done:
		if runErr != nil {
			logging.LogError("Service stopped with error", zap.Error(runErr))
		}
	case <-time.After(10 * time.Second):
		logging.LogWarn("Timeout waiting for monitors to stop, forcing shutdown")
	}

	if err := st.Close(); err != nil {
		logging.LogError("Failed to save state on shutdown", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	} else {
		logging.LogSuccess("State saved, shutdown complete")
	}
	return runErr
}
