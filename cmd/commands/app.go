package commands

// Shared wiring for every subcommand: config, logging, the store,
// the holder source and the scrape controller.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"holders-api/internal/browser"
	"holders-api/internal/clients_api/solscan"
	"holders-api/internal/csvholders"
	"holders-api/internal/infra/config"
	logging "holders-api/internal/infra/log"
	"holders-api/internal/infra/s3backup"
	"holders-api/internal/scraper"
	"holders-api/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func bootstrap(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logging.Setup(logging.Options{
		Dir:   cfg.Log.Dir,
		Debug: strings.EqualFold(cfg.Log.Level, "debug"),
	}); err != nil {
		return nil, err
	}

	logging.LogInfo("Config loaded",
		zap.String("token", cfg.Token.Address),
		zap.String("source", cfg.Scraper.Source),
		zap.String("store", cfg.Store.Path))
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	var sink store.BackupSink
	if cfg.S3.Enabled {
		up, err := s3backup.New(ctx, s3backup.Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		sink = up
		logging.LogInfo("Remote backups enabled", zap.String("bucket", cfg.S3.Bucket))
	}

	st, err := store.Open(store.Options{
		Path:             cfg.Store.Path,
		BackupDir:        cfg.Store.BackupDir,
		BackupKeep:       cfg.Store.BackupKeep,
		MaxHistory:       cfg.Store.MaxHistory,
		MaxWinners:       cfg.Winners.MaxEntries,
		DefaultPrize:     cfg.Winners.DefaultPrize,
		TokenAddress:     cfg.Token.Address,
		TokenName:        cfg.Token.Name,
		AutosaveInterval: cfg.Store.AutosaveInterval(),
		BackupInterval:   cfg.Store.BackupInterval(),
		Sink:             sink,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// buildSource picks the holder source. An explicit CSV path always wins.
func buildSource(cfg *config.Config) (scraper.HolderSource, error) {
	if cfg.Scraper.CSVPath != "" {
		return &csvholders.FileSource{Path: cfg.Scraper.CSVPath}, nil
	}

	switch cfg.Scraper.Source {
	case "solscan":
		if cfg.Solscan.APIKey == "" {
			logging.LogWarn("SOLSCAN_API_KEY is empty, requests will likely be rejected")
		}
		return solscan.NewClient(solscan.Options{
			BaseURL:         cfg.Solscan.BaseURL,
			APIKey:          cfg.Solscan.APIKey,
			PageSize:        cfg.Solscan.PageSize,
			MaxPages:        cfg.Solscan.MaxPages,
			RequestTimeout:  time.Duration(cfg.Solscan.RequestTimeout) * time.Second,
			MaxResponseSize: cfg.Solscan.MaxResponseSize,
		}), nil
	case "browser":
		return browser.NewExportSource(browser.Options{
			Headless:    cfg.Browser.Headless,
			Bin:         cfg.Browser.Bin,
			DownloadDir: cfg.Browser.DownloadDir,
			PageURL:     cfg.Browser.PageURL,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", scraper.ErrNoSource, cfg.Scraper.Source)
	}
}

func buildController(cfg *config.Config, st *store.Store, notifier scraper.Notifier) (*scraper.Controller, error) {
	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	proxies, err := scraper.NewRotator(cfg.Proxy.List, cfg.Proxy.Username, cfg.Proxy.Password)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy list: %w", err)
	}
	if proxies.Len() > 0 {
		logging.LogInfo("Proxy rotation enabled", zap.Int("proxies", proxies.Len()))
	}

	return scraper.NewController(source, st, scraper.Options{
		TokenAddress:   cfg.Token.Address,
		Cooldown:       cfg.Scraper.Cooldown(),
		MaxRetries:     cfg.Scraper.MaxRetries,
		RetryDelay:     cfg.Scraper.RetryDelay(),
		AttemptTimeout: cfg.Scraper.AttemptTimeout(),
		Proxies:        proxies,
		Notifier:       notifier,
	}), nil
}
