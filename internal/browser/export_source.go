package browser

// Holder source that drives a real Chrome through Solscan's holders tab and
// clicks "Export CSV". The downloaded file is parsed with csvholders.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"holders-api/internal/csvholders"
	"holders-api/internal/infra/fs"
	"holders-api/internal/infra/log"
	"holders-api/internal/infra/retry"
	"holders-api/internal/scraper"
	"holders-api/internal/store"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

type Options struct {
	Headless     bool
	Bin          string // empty lets rod find or download Chrome
	DownloadDir  string
	PageURL      string // fmt pattern with one %s for the token address
	SettleDelay  time.Duration
	DownloadWait time.Duration
}

// ExportSource implements scraper.HolderSource. Each attempt launches a fresh
// browser so a burnt proxy never leaks into the next attempt.
type ExportSource struct {
	opts Options
}

func NewExportSource(opts Options) *ExportSource {
	if opts.DownloadDir == "" {
		opts.DownloadDir = "data/downloads"
	}
	if opts.PageURL == "" {
		opts.PageURL = "https://solscan.io/token/%s#holders"
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 10 * time.Second
	}
	if opts.DownloadWait <= 0 {
		opts.DownloadWait = 30 * time.Second
	}
	return &ExportSource{opts: opts}
}

func (s *ExportSource) Name() string { return "browser" }

func (s *ExportSource) FetchHolders(ctx context.Context, req scraper.FetchRequest) ([]store.HolderEntry, error) {
	dir, err := filepath.Abs(s.opts.DownloadDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if n, _ := fs.RemoveOlderThan(dir, ".csv", time.Hour); n > 0 {
		log.LogDebug("Removed old CSV downloads", zap.Int("count", n))
	}

	b, cleanup, err := s.launch(req.Proxy)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	started := time.Now()
	path, err := s.export(ctx, b, dir, req.TokenAddress, started)
	if err != nil {
		return nil, err
	}

	entries, err := csvholders.ParseFile(path)
	if err != nil {
		return nil, err
	}
	log.LogInfo("Holders CSV downloaded",
		zap.String("file", filepath.Base(path)),
		zap.Int("rows", len(entries)),
		zap.Int64("duration_ms", time.Since(started).Milliseconds()))
	return entries, nil
}

func (s *ExportSource) launch(proxy *scraper.Proxy) (*rod.Browser, func(), error) {
	l := launcher.New().Headless(s.opts.Headless)
	if s.opts.Bin != "" {
		l = l.Bin(s.opts.Bin)
	}
	l = l.Set("disable-blink-features", "AutomationControlled").
		Set("no-sandbox").
		Set("disable-dev-shm-usage")
	if proxy != nil {
		l = l.Set("proxy-server", proxy.Addr())
	}

	u, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}

	if proxy != nil && proxy.Username != "" {
		wait := b.HandleAuth(proxy.Username, proxy.Password)
		go func() {
			if err := wait(); err != nil {
				log.LogDebug("Proxy auth handler stopped", zap.Error(err))
			}
		}()
	}

	cleanup := func() {
		_ = b.Close()
		l.Kill()
		l.Cleanup()
	}
	return b, cleanup, nil
}

func (s *ExportSource) export(ctx context.Context, b *rod.Browser, dir, token string, since time.Time) (string, error) {
	err := proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath:  dir,
		EventsEnabled: true,
	}.Call(b)
	if err != nil {
		return "", fmt.Errorf("browser: set download behavior: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	pageURL := fmt.Sprintf(s.opts.PageURL, token)
	log.LogDebug("Navigating", zap.String("url", pageURL))
	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		log.LogWarn("Page load wait failed", zap.String("url", pageURL), zap.Error(err))
	}
	if err := retry.Sleep(ctx, s.opts.SettleDelay); err != nil {
		return "", err
	}

	if blocked, _ := evalBool(page, jsCloudflare); blocked {
		log.LogInfo("Cloudflare challenge detected, waiting")
		if err := retry.Sleep(ctx, s.opts.SettleDelay+5*time.Second); err != nil {
			return "", err
		}
	}

	if _, err := evalBool(page, jsHoldersTab); err != nil {
		log.LogDebug("Holders tab click failed", zap.Error(err))
	}
	if err := retry.Sleep(ctx, 3*time.Second); err != nil {
		return "", err
	}

	clicked, err := evalBool(page, jsExportButton)
	if err != nil {
		return "", fmt.Errorf("browser: export button: %w", err)
	}
	if !clicked {
		return "", fmt.Errorf("browser: Export CSV button not found")
	}

	if err := retry.Sleep(ctx, 2*time.Second); err != nil {
		return "", err
	}
	if ok, _ := evalBool(page, jsDownloadButton); !ok {
		log.LogWarn("Download button not found in export popup, waiting for direct download")
	}

	return fs.WaitForNewFile(ctx, dir, ".csv", since, s.opts.DownloadWait)
}

func evalBool(page *rod.Page, js string) (bool, error) {
	res, err := page.Eval(js)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

const jsCloudflare = `() => document.title.includes('Cloudflare') ||
	document.body.textContent.includes('Checking your browser')`

const jsHoldersTab = `() => {
	for (const tab of document.querySelectorAll('a, button, div[role="tab"]')) {
		if (tab.textContent && tab.textContent.toLowerCase().includes('holder')) {
			tab.click();
			return true;
		}
	}
	return false;
}`

const jsExportButton = `() => {
	for (const btn of document.querySelectorAll('button, a, div[role="button"]')) {
		const text = (btn.textContent || '').toLowerCase();
		if (text.includes('export') && text.includes('csv')) {
			btn.click();
			return true;
		}
	}
	return false;
}`

const jsDownloadButton = `() => {
	for (const btn of document.querySelectorAll('button, a')) {
		if ((btn.textContent || '').toLowerCase().includes('download')) {
			btn.click();
			return true;
		}
	}
	return false;
}`
