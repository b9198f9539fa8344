package monitors

// Package monitors runs the background loops of the serve command:
// periodic holder scrapes, wallet rotation and Telegram notifications.

import (
	"context"
	"time"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/scraper"

	"go.uber.org/zap"
)

// Scraper runs one gated scrape cycle.
type Scraper interface {
	ScrapeHolders(ctx context.Context) scraper.Result
}

type ScrapeOptions struct {
	AutoUpdate bool
	Interval   time.Duration
	// OnFirst is called once after the startup scrape, whatever its outcome.
	OnFirst func(scraper.Result)
}

// RunScrapeMonitor scrapes once at start, then on every tick while auto-update is on.
// It returns when ctx is done, or right after the first scrape when auto-update is off.
func RunScrapeMonitor(ctx context.Context, sc Scraper, opts ScrapeOptions) {
	logging.LogInfo("Starting scrape monitor...",
		zap.Bool("autoUpdate", opts.AutoUpdate),
		zap.Duration("interval", opts.Interval))

	res := scrapeOnce(ctx, sc, "initial")
	if opts.OnFirst != nil {
		opts.OnFirst(res)
	}

	if !opts.AutoUpdate || opts.Interval <= 0 {
		logging.LogInfo("Auto-update disabled, scrape monitor finished after initial scrape")
		return
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	logging.LogSuccess("Scrape monitor is running", zap.String("interval", opts.Interval.String()))

	for {
		select {
		case <-ctx.Done():
			logging.LogInfo("Scrape monitor stopped")
			return
		case <-ticker.C:
			scrapeOnce(ctx, sc, "scheduled")
		}
	}
}

func scrapeOnce(ctx context.Context, sc Scraper, kind string) scraper.Result {
	start := time.Now()
	res := sc.ScrapeHolders(ctx)
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("wallets", len(res.Wallets)),
		zap.Int("attempts", res.Attempts),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	}

	switch res.Outcome {
	case scraper.OutcomeCommitted:
		logging.LogSuccess("Holders updated", fields...)
	case scraper.OutcomeExhausted:
		logging.LogError("Holder scrape failed", append(fields, zap.Error(res.Err))...)
	case scraper.OutcomeSuspended:
		logging.LogWarn("Holder scrape suspended by circuit breaker", fields...)
	default:
		logging.LogDebug("Holder scrape skipped", fields...)
	}
	return res
}
