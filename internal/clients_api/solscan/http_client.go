package solscan

// HTTP client for the Solscan Pro API
// Every request goes through the rate limiter and the retry module
// A request may be routed through one upstream proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"holders-api/internal/infra/log"
	"holders-api/internal/infra/retry"
	"holders-api/internal/scraper"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://pro-api.solscan.io/v2.0"

// Cloudflare answers 403 and 520-524 while it rate limits proxied traffic.
var solscanRetryOn = append([]int{http.StatusForbidden, 520, 521, 522, 523, 524}, retry.DefaultRetryOn...)

type Options struct {
	BaseURL         string
	APIKey          string
	PageSize        int
	MaxPages        int
	RequestTimeout  time.Duration
	MaxResponseSize int64
}

// Client is a Solscan API client. Safe for concurrent use.
type Client struct {
	baseURL         string
	apiKey          string
	pageSize        int
	maxPages        int
	timeout         time.Duration
	maxResponseSize int64
	rateLimiter     *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 40
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 25
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = 10 * 1024 * 1024
	}

	return &Client{
		baseURL:         opts.BaseURL,
		apiKey:          opts.APIKey,
		pageSize:        opts.PageSize,
		maxPages:        opts.MaxPages,
		timeout:         opts.RequestTimeout,
		maxResponseSize: opts.MaxResponseSize,
		// Pro API allows 1000 requests per minute
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (c *Client) httpClient(proxy *scraper.Proxy) *http.Client {
	transport := &http.Transport{
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy.URL())
	}
	return &http.Client{Timeout: c.timeout, Transport: transport}
}

func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", "https://solscan.io")
	req.Header.Set("Referer", "https://solscan.io/")
	if apiKey != "" {
		req.Header.Set("token", apiKey)
	}
}

// doGET fetches endpoint with query through client, retrying 429/5xx.
func (c *Client) doGET(ctx context.Context, client *http.Client, endpoint string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var respBody []byte
	opts := retry.Options{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		RetryOn:   solscanRetryOn,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.LogWarn("Retrying Solscan request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		},
	}
	err := retry.Do(ctx, opts, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		requestID := log.GenerateRequestID()
		start := time.Now()
		log.LogRequest(requestID, http.MethodGet, endpoint, zap.String("query", query.Encode()))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}
		setHeaders(req, c.apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
		if err != nil {
			return err
		}
		log.LogResponse(requestID, resp.StatusCode, time.Since(start).Milliseconds(), zap.String("endpoint", endpoint))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retry.NewHTTPError(endpoint, resp, body)
		}
		respBody = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("solscan GET %s failed: %w", endpoint, err)
	}
	return respBody, nil
}
