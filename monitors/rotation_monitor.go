package monitors

import (
	"context"
	"time"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/store"

	"go.uber.org/zap"
)

// Selector draws the next current wallet.
type Selector interface {
	SelectRandom(weighted bool) (store.HolderRecord, bool)
}

type RotationOptions struct {
	Interval time.Duration
	Weighted bool
	// Ready is closed once the first scrape has finished. Nil starts immediately.
	Ready <-chan struct{}
}

// RunRotationMonitor selects a wallet after the first scrape and then on every tick.
func RunRotationMonitor(ctx context.Context, sel Selector, opts RotationOptions) {
	if opts.Interval <= 0 {
		logging.LogWarn("Rotation interval is not positive, rotation monitor will not run",
			zap.Duration("interval", opts.Interval))
		return
	}

	if opts.Ready != nil {
		select {
		case <-ctx.Done():
			return
		case <-opts.Ready:
		}
	}

	rotate(sel, opts.Weighted)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	logging.LogSuccess("Rotation monitor is running",
		zap.String("interval", opts.Interval.String()),
		zap.Bool("weighted", opts.Weighted))

	for {
		select {
		case <-ctx.Done():
			logging.LogInfo("Rotation monitor stopped")
			return
		case <-ticker.C:
			rotate(sel, opts.Weighted)
		}
	}
}

func rotate(sel Selector, weighted bool) {
	rec, ok := sel.SelectRandom(weighted)
	if !ok {
		logging.LogDebug("No wallets to rotate")
		return
	}
	logging.LogDebug("Wallet rotated",
		zap.String("wallet", rec.Address),
		zap.Int("rank", rec.Rank),
		zap.Float64("percentage", rec.Percentage))
}
