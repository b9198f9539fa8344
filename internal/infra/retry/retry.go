package retry

// Request-level retries for upstream HTTP APIs and context-aware waits.
// Backoff is exponential with full jitter; a Retry-After header on a
// throttled response overrides it.

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryOn are the statuses a rate limited or overloaded API answers with.
var DefaultRetryOn = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

const maxErrorBody = 512

type Options struct {
	Attempts  int // total calls, including the first
	BaseDelay time.Duration
	MaxDelay  time.Duration
	RetryOn   []int // nil means DefaultRetryOn
	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

// NewHTTPError captures resp, keeping at most 512 bytes of body.
func NewHTTPError(endpoint string, resp *http.Response, body []byte) *HTTPError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       body,
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s: http %d", e.Endpoint, e.StatusCode)
	if len(e.Body) > 0 {
		msg += ": " + string(e.Body)
	}
	return msg
}

func (o Options) retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		codes := o.RetryOn
		if codes == nil {
			codes = DefaultRetryOn
		}
		return slices.Contains(codes, he.StatusCode)
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// wait picks the pause after the failed call number attempt (0-based).
func (o Options) wait(attempt int, err error) time.Duration {
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusTooManyRequests && he.RetryAfter > 0 {
		return capAt(he.RetryAfter, o.MaxDelay)
	}
	ceiling := capAt(o.BaseDelay<<min(attempt, 16), o.MaxDelay)
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}

func capAt(d, ceiling time.Duration) time.Duration {
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

// ParseRetryAfter reads delta-seconds or an HTTP date relative to now.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0)
	}
	return 0
}

// Do calls fn until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx is done.
func Do(ctx context.Context, opts Options, fn func() error) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 300 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == opts.Attempts-1 || !opts.retryable(err) {
			return err
		}

		d := opts.wait(attempt, err)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, d)
		}
		if serr := Sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
