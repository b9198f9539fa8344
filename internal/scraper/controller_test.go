package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/store"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type scriptedSource struct {
	calls   atomic.Int32
	results []func() ([]store.HolderEntry, error)
	reqs    []FetchRequest
	mu      sync.Mutex
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) FetchHolders(_ context.Context, req FetchRequest) ([]store.HolderEntry, error) {
	n := int(s.calls.Add(1)) - 1
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if n >= len(s.results) {
		return s.results[len(s.results)-1]()
	}
	return s.results[n]()
}

func ok(entries ...store.HolderEntry) func() ([]store.HolderEntry, error) {
	return func() ([]store.HolderEntry, error) { return entries, nil }
}

func fail(msg string) func() ([]store.HolderEntry, error) {
	return func() ([]store.HolderEntry, error) { return nil, errors.New(msg) }
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func newController(t *testing.T, src HolderSource, mutate func(*Options)) (*Controller, *store.Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	st := store.New(store.Options{Now: clock.Now})
	opts := Options{
		TokenAddress: "mint",
		Cooldown:     8 * time.Minute,
		MaxRetries:   3,
		RetryDelay:   time.Millisecond,
		Now:          clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewController(src, st, opts), st, clock
}

var (
	holderA = store.HolderEntry{Address: "A", Balance: 100}
	holderB = store.HolderEntry{Address: "B", Balance: 50}
)

func TestScrapeCommitsOnSuccess(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){ok(holderB, holderA)}}
	c, st, _ := newController(t, src, nil)

	res := c.ScrapeHolders(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.Wallets, 2)
	assert.Equal(t, "A", res.Wallets[0].Address)
	assert.Equal(t, res.Wallets, st.AllWallets())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.TotalScrapes)
	assert.Equal(t, "100.00%", stats.SuccessRate)
	assert.NotNil(t, stats.LastScrapeTime)
	assert.Equal(t, "idle", stats.State)
}

func TestScrapeCooldownReturnsCachedData(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){ok(holderA), ok(holderB)}}
	c, _, clock := newController(t, src, nil)

	first := c.ScrapeHolders(context.Background())
	clock.Advance(7 * time.Minute)
	second := c.ScrapeHolders(context.Background())

	assert.Equal(t, OutcomeCooldown, second.Outcome)
	assert.Equal(t, first.Wallets, second.Wallets)
	assert.Equal(t, int32(1), src.calls.Load())

	clock.Advance(time.Minute)
	third := c.ScrapeHolders(context.Background())
	assert.Equal(t, OutcomeCommitted, third.Outcome)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestScrapeRetriesThenSucceeds(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){
		fail("timeout"),
		ok(),
		ok(holderA),
	}}
	c, _, _ := newController(t, src, nil)

	res := c.ScrapeHolders(context.Background())
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestScrapeExhaustedKeepsPreviousSnapshot(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){
		ok(holderA, holderB),
		fail("blocked"),
	}}
	notifier := &recordingNotifier{}
	c, st, clock := newController(t, src, func(o *Options) { o.Notifier = notifier })

	c.ScrapeHolders(context.Background())
	before := st.AllWallets()
	soldBefore := st.SoldWallets()

	clock.Advance(10 * time.Minute)
	res := c.ScrapeHolders(context.Background())

	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Error(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, before, res.Wallets)
	assert.Equal(t, before, st.AllWallets())
	assert.Equal(t, soldBefore, st.SoldWallets())
	assert.Equal(t, int32(4), src.calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, "50.00%", stats.SuccessRate)
	assert.Equal(t, "blocked", stats.LastError)
	assert.Len(t, notifier.texts, 1)
}

func TestScrapeEmptyResultNeverCommitted(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){
		ok(store.HolderEntry{Address: "  ", Balance: 5}),
	}}
	c, st, _ := newController(t, src, nil)

	res := c.ScrapeHolders(context.Background())
	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.True(t, IsEmptyResult(res.Err))
	assert.Empty(t, st.AllWallets())
	assert.Equal(t, 0, st.Stats().TotalWalletsProcessed)
}

func TestCooldownAnchoredOnFailedCycle(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){fail("down")}}
	c, _, clock := newController(t, src, func(o *Options) { o.MaxRetries = 1 })

	c.ScrapeHolders(context.Background())
	clock.Advance(time.Minute)
	res := c.ScrapeHolders(context.Background())

	assert.Equal(t, OutcomeCooldown, res.Outcome)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestConcurrentTriggersShareGate(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	src := SourceFunc(func(ctx context.Context, req FetchRequest) ([]store.HolderEntry, error) {
		calls.Add(1)
		<-release
		return []store.HolderEntry{holderA}, nil
	})
	c, _, _ := newController(t, src, func(o *Options) { o.Cooldown = 0 })

	done := make(chan Result)
	go func() { done <- c.ScrapeHolders(context.Background()) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	busy := c.ScrapeHolders(context.Background())
	assert.Equal(t, OutcomeBusy, busy.Outcome)

	close(release)
	assert.Equal(t, OutcomeCommitted, (<-done).Outcome)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelStopsBetweenAttemptsOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancelled atomic.Bool
	src := SourceFunc(func(attemptCtx context.Context, req FetchRequest) ([]store.HolderEntry, error) {
		cancel()
		if attemptCtx.Err() != nil {
			sawCancelled.Store(true)
		}
		return nil, errors.New("fail")
	})
	c, _, _ := newController(t, src, func(o *Options) { o.RetryDelay = time.Hour })

	res := c.ScrapeHolders(ctx)
	assert.Equal(t, OutcomeExhausted, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, sawCancelled.Load(), "attempt context is detached from caller cancellation")
}

func TestProxyPassedToSource(t *testing.T) {
	rot, err := NewRotator([]string{"10.0.0.1:8080", "10.0.0.2:8080"}, "u", "p")
	require.NoError(t, err)
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){fail("x"), fail("x"), ok(holderA)}}
	c, _, _ := newController(t, src, func(o *Options) { o.Proxies = rot })

	c.ScrapeHolders(context.Background())
	require.Len(t, src.reqs, 3)
	for i, r := range src.reqs {
		require.NotNil(t, r.Proxy)
		assert.Equal(t, "u", r.Proxy.Username)
		assert.Equal(t, i+1, r.Attempt)
		assert.Equal(t, "mint", r.TokenAddress)
		if i > 0 {
			assert.NotEqual(t, src.reqs[i-1].Proxy.Addr(), r.Proxy.Addr(), "no immediate repeat")
		}
	}
}

func TestNoSourceIsAttemptFailure(t *testing.T) {
	c, _, _ := newController(t, nil, func(o *Options) { o.MaxRetries = 1 })
	res := c.ScrapeHolders(context.Background())
	assert.ErrorIs(t, res.Err, ErrNoSource)
}

func TestRepeatedExhaustedCyclesKeepFullRetryBudget(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){fail("down")}}
	c, _, clock := newController(t, src, func(o *Options) { o.Cooldown = 40 * time.Millisecond })

	for cycle := 1; cycle <= 4; cycle++ {
		before := src.calls.Load()
		res := c.ScrapeHolders(context.Background())

		assert.Equal(t, OutcomeExhausted, res.Outcome, "cycle %d", cycle)
		assert.Equal(t, 3, res.Attempts, "cycle %d", cycle)
		assert.Equal(t, int32(3), src.calls.Load()-before, "cycle %d", cycle)
		assert.NotErrorIs(t, res.Err, gobreaker.ErrOpenState)
		clock.Advance(50 * time.Millisecond)
	}
	assert.Equal(t, int32(12), src.calls.Load())
}

func TestBreakerSuspendsWholeCyclesAfterTrips(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){fail("down")}}
	c, st, _ := newController(t, src, func(o *Options) {
		o.Cooldown = 0
		o.BreakerTrips = 2
		o.BreakerTimeout = time.Hour
	})

	for i := 0; i < 2; i++ {
		res := c.ScrapeHolders(context.Background())
		require.Equal(t, OutcomeExhausted, res.Outcome)
	}
	require.Equal(t, int32(6), src.calls.Load())
	assert.Equal(t, "open", c.Stats().BreakerState)

	res := c.ScrapeHolders(context.Background())
	assert.Equal(t, OutcomeSuspended, res.Outcome)
	assert.ErrorIs(t, res.Err, gobreaker.ErrOpenState)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, st.AllWallets(), res.Wallets)
	assert.Equal(t, int32(6), src.calls.Load(), "no source call while open")
	assert.Equal(t, "idle", c.Stats().State)
	assert.Equal(t, int64(2), c.Stats().Errors)
}

func TestBreakerHalfOpenRunsFullCycle(t *testing.T) {
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){
		fail("down"), fail("down"), fail("down"),
		fail("still down"), fail("still down"), ok(holderA),
	}}
	c, _, _ := newController(t, src, func(o *Options) {
		o.Cooldown = 0
		o.BreakerTrips = 1
		o.BreakerTimeout = 20 * time.Millisecond
	})

	require.Equal(t, OutcomeExhausted, c.ScrapeHolders(context.Background()).Outcome)
	require.Equal(t, OutcomeSuspended, c.ScrapeHolders(context.Background()).Outcome)

	require.Eventually(t, func() bool { return c.Stats().BreakerState == "half-open" },
		time.Second, 5*time.Millisecond)

	res := c.ScrapeHolders(context.Background())
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(6), src.calls.Load())
	assert.Equal(t, "closed", c.Stats().BreakerState)
}

func TestCycleDurationUsesInjectedClock(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logging.Logger
	logging.Logger = zap.New(core)
	t.Cleanup(func() { logging.Logger = prev })

	var clock *testClock
	slow := func(next func() ([]store.HolderEntry, error)) func() ([]store.HolderEntry, error) {
		return func() ([]store.HolderEntry, error) {
			clock.Advance(90 * time.Second)
			return next()
		}
	}
	src := &scriptedSource{results: []func() ([]store.HolderEntry, error){
		slow(fail("down")), slow(ok(holderA)),
		slow(fail("down")), slow(fail("down")),
	}}
	var c *Controller
	c, _, clock = newController(t, src, func(o *Options) {
		o.Cooldown = 0
		o.MaxRetries = 2
	})

	require.Equal(t, OutcomeCommitted, c.ScrapeHolders(context.Background()).Outcome)
	require.Equal(t, OutcomeExhausted, c.ScrapeHolders(context.Background()).Outcome)

	committed := logs.FilterMessage("Holders scraped").All()
	require.Len(t, committed, 1)
	assert.Equal(t, int64(180000), committed[0].ContextMap()["duration_ms"])

	exhausted := logs.FilterMessage("Scrape failed after all retries").All()
	require.Len(t, exhausted, 1)
	assert.Equal(t, int64(180000), exhausted[0].ContextMap()["duration_ms"])
}
