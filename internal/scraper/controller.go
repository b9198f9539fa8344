package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/infra/retry"
	"holders-api/internal/store"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Snapshots is the part of the store the controller writes to.
type Snapshots interface {
	ReplaceHolders(entries []store.HolderEntry) []store.HolderRecord
	AllWallets() []store.HolderRecord
}

// Notifier is told about cycles that exhausted their retries.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Options struct {
	TokenAddress   string
	Cooldown       time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	Proxies        *Rotator
	Notifier       Notifier
	Now            func() time.Time

	// BreakerTrips consecutive exhausted cycles open the breaker for
	// BreakerTimeout; while open, cycles are skipped without calling the source.
	BreakerTrips   int
	BreakerTimeout time.Duration
}

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeCooldown  Outcome = "cooldown"
	OutcomeBusy      Outcome = "busy"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeSuspended Outcome = "suspended" // circuit breaker open
)

// Result of ScrapeHolders. Wallets is always the snapshot callers should
// serve: the new one on commit, the unchanged one otherwise.
type Result struct {
	Wallets  []store.HolderRecord
	Outcome  Outcome
	Attempts int
	Err      error
}

type Stats struct {
	LastScrapeTime  *time.Time `json:"lastScrapeTime"`
	LastAttemptTime *time.Time `json:"lastAttemptTime"`
	TotalScrapes    int64      `json:"totalScrapes"`
	Errors          int64      `json:"errors"`
	SuccessRate     string     `json:"successRate"`
	State           string     `json:"state"`
	LastError       string     `json:"lastError,omitempty"`
	BreakerState    string     `json:"breakerState"`
	CurrentProxy    string     `json:"currentProxy,omitempty"`
	Source          string     `json:"source"`
	CooldownSeconds float64    `json:"cooldownSeconds"`
}

// Controller runs scrape cycles behind a cooldown gate. Manual and
// scheduled triggers share the same gate; a call arriving while a cycle
// runs or during cooldown gets the cached snapshot back.
type Controller struct {
	source  HolderSource
	store   Snapshots
	opts    Options
	breaker *gobreaker.CircuitBreaker

	mu           sync.Mutex
	state        State
	running      bool
	lastAttempt  time.Time
	lastScrape   time.Time
	totalScrapes int64
	errors       int64
	lastErr      error
	currentProxy string
}

func NewController(source HolderSource, snapshots Snapshots, opts Options) *Controller {
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BreakerTrips <= 0 {
		opts.BreakerTrips = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = max(2*opts.Cooldown, time.Minute)
	}

	c := &Controller{
		source: source,
		store:  snapshots,
		opts:   opts,
		state:  StateIdle,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "HolderSource",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(opts.BreakerTrips)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.LogWarn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// ScrapeHolders runs one cycle if the gate is open. Attempts are not
// cancelled by ctx; only the wait between attempts is. The whole cycle is
// one circuit breaker request, so every attempt inside it reaches the source.
func (c *Controller) ScrapeHolders(ctx context.Context) Result {
	if outcome, blocked := c.enter(); blocked {
		logging.LogDebug("Scrape skipped", zap.String("reason", string(outcome)))
		res := Result{Wallets: c.store.AllWallets(), Outcome: outcome}
		if outcome == OutcomeSuspended {
			res.Err = gobreaker.ErrOpenState
		}
		return res
	}

	var res Result
	_, err := c.breaker.Execute(func() (interface{}, error) {
		res = c.runCycle(ctx)
		return nil, res.Err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.finishSuspended()
		return Result{Wallets: c.store.AllWallets(), Outcome: OutcomeSuspended, Err: err}
	}
	return res
}

func (c *Controller) runCycle(ctx context.Context) Result {
	start := c.opts.Now()
	var lastErr error
	for attempt := 1; ; attempt++ {
		entries, err := c.attempt(ctx, attempt)
		if err == nil {
			c.step(EventSucceeded)
			wallets := c.store.ReplaceHolders(entries)
			c.finishCommitted()
			logging.LogSuccess("Holders scraped",
				zap.Int("holders", len(wallets)),
				zap.Int("attempt", attempt),
				zap.Int64("duration_ms", c.opts.Now().Sub(start).Milliseconds()))
			return Result{Wallets: wallets, Outcome: OutcomeCommitted, Attempts: attempt}
		}

		lastErr = err
		logging.LogWarn("Scrape attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.opts.MaxRetries),
			zap.Error(err))

		ev := AfterFailure(attempt, c.opts.MaxRetries)
		if ev == EventRetry {
			if waitErr := retry.Sleep(ctx, c.opts.RetryDelay); waitErr != nil {
				lastErr = fmt.Errorf("%w (retry wait interrupted: %v)", err, waitErr)
				ev = EventGiveUp
			}
		}
		c.step(ev)
		if ev == EventGiveUp {
			c.finishExhausted(lastErr)
			logging.LogError("Scrape failed after all retries",
				zap.Int("attempts", attempt),
				zap.Int64("duration_ms", c.opts.Now().Sub(start).Milliseconds()),
				zap.Error(lastErr))
			c.notify(ctx, attempt, lastErr)
			return Result{Wallets: c.store.AllWallets(), Outcome: OutcomeExhausted, Attempts: attempt, Err: lastErr}
		}
	}
}

// enter checks and closes the gate. The cooldown is measured from the start
// of the previous cycle regardless of its outcome.
func (c *Controller) enter() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	if c.running {
		return OutcomeBusy, true
	}
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.opts.Cooldown {
		c.mustStep(EventBlocked)
		c.mustStep(EventReset)
		return OutcomeCooldown, true
	}
	if c.breaker.State() == gobreaker.StateOpen {
		c.mustStep(EventBlocked)
		c.mustStep(EventReset)
		return OutcomeSuspended, true
	}

	c.mustStep(EventClear)
	c.running = true
	c.lastAttempt = now
	return "", false
}

func (c *Controller) attempt(ctx context.Context, n int) ([]store.HolderEntry, error) {
	if c.source == nil {
		return nil, ErrNoSource
	}

	req := FetchRequest{TokenAddress: c.opts.TokenAddress, Attempt: n}
	if p, ok := c.opts.Proxies.Next(); ok {
		req.Proxy = &p
		c.mu.Lock()
		c.currentProxy = p.String()
		c.mu.Unlock()
		logging.LogDebug("Using proxy", zap.String("proxy", p.String()), zap.Int("attempt", n))
	}

	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.AttemptTimeout)
	defer cancel()

	raw, err := c.source.FetchHolders(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	entries := Normalize(raw)
	if len(entries) == 0 {
		return nil, ErrEmptyResult
	}
	return entries, nil
}

func (c *Controller) step(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustStep(ev)
}

// mustStep applies ev; callers hold c.mu.
func (c *Controller) mustStep(ev Event) {
	next, err := Transition(c.state, ev)
	if err != nil {
		logging.LogError("Scrape state machine", zap.Error(err))
		next = StateIdle
	}
	c.state = next
}

func (c *Controller) finishCommitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustStep(EventCommitted)
	c.running = false
	c.lastScrape = c.opts.Now()
	c.totalScrapes++
	c.lastErr = nil
}

// finishSuspended reopens the gate when the breaker refused the cycle.
func (c *Controller) finishSuspended() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustStep(EventGiveUp)
	c.mustStep(EventReset)
	c.running = false
}

func (c *Controller) finishExhausted(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustStep(EventReset)
	c.running = false
	c.errors++
	c.lastErr = err
}

func (c *Controller) notify(ctx context.Context, attempts int, err error) {
	if c.opts.Notifier == nil {
		return
	}
	text := fmt.Sprintf("⚠️ Holder scrape failed after %d attempts: %v", attempts, err)
	if nerr := c.opts.Notifier.Notify(context.WithoutCancel(ctx), text); nerr != nil {
		logging.LogWarn("Failed to send scrape failure notification", zap.Error(nerr))
	}
}

// NextAllowed returns when the gate opens again; zero before the first cycle.
func (c *Controller) NextAllowed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastAttempt.IsZero() {
		return time.Time{}
	}
	return c.lastAttempt.Add(c.opts.Cooldown)
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		TotalScrapes:    c.totalScrapes,
		Errors:          c.errors,
		SuccessRate:     successRate(c.totalScrapes, c.errors),
		State:           c.state.String(),
		BreakerState:    c.breaker.State().String(),
		CurrentProxy:    c.currentProxy,
		CooldownSeconds: c.opts.Cooldown.Seconds(),
	}
	if c.source != nil {
		st.Source = c.source.Name()
	}
	if !c.lastScrape.IsZero() {
		t := c.lastScrape
		st.LastScrapeTime = &t
	}
	if !c.lastAttempt.IsZero() {
		t := c.lastAttempt
		st.LastAttemptTime = &t
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func successRate(ok, failed int64) string {
	total := ok + failed
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(ok)/float64(total)*100)
}

// IsEmptyResult reports whether err came from a source returning nothing usable.
func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}
