package monitors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"holders-api/internal/scraper"
	"holders-api/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingScraper struct {
	calls atomic.Int32
}

func (s *countingScraper) ScrapeHolders(context.Context) scraper.Result {
	s.calls.Add(1)
	return scraper.Result{Outcome: scraper.OutcomeCommitted, Attempts: 1}
}

type countingSelector struct {
	calls atomic.Int32
	empty bool
}

func (s *countingSelector) SelectRandom(bool) (store.HolderRecord, bool) {
	s.calls.Add(1)
	if s.empty {
		return store.HolderRecord{}, false
	}
	return store.HolderRecord{Address: "wallet", Rank: 1}, true
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tgbotapi.MessageConfig
	err  error
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return tgbotapi.Message{}, r.err
	}
	r.msgs = append(r.msgs, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestScrapeMonitor_SingleRunWithoutAutoUpdate(t *testing.T) {
	sc := &countingScraper{}
	var first scraper.Result
	done := make(chan struct{})

	go func() {
		RunScrapeMonitor(context.Background(), sc, ScrapeOptions{
			AutoUpdate: false,
			Interval:   time.Millisecond,
			OnFirst:    func(r scraper.Result) { first = r },
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not return")
	}
	assert.Equal(t, int32(1), sc.calls.Load())
	assert.Equal(t, scraper.OutcomeCommitted, first.Outcome)
}

func TestScrapeMonitor_TicksUntilCancelled(t *testing.T) {
	sc := &countingScraper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		RunScrapeMonitor(ctx, sc, ScrapeOptions{AutoUpdate: true, Interval: 5 * time.Millisecond})
		close(done)
	}()

	require.Eventually(t, func() bool { return sc.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on cancel")
	}
}

func TestRotationMonitor_WaitsForFirstScrape(t *testing.T) {
	sel := &countingSelector{}
	ready := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunRotationMonitor(ctx, sel, RotationOptions{Interval: time.Hour, Ready: ready})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), sel.calls.Load())

	close(ready)
	require.Eventually(t, func() bool { return sel.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRotationMonitor_RotatesOnTick(t *testing.T) {
	sel := &countingSelector{empty: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunRotationMonitor(ctx, sel, RotationOptions{Interval: 5 * time.Millisecond})

	require.Eventually(t, func() bool { return sel.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRotationMonitor_NonPositiveInterval(t *testing.T) {
	sel := &countingSelector{}
	RunRotationMonitor(context.Background(), sel, RotationOptions{})
	assert.Equal(t, int32(0), sel.calls.Load())
}

func TestTelegramNotifier_DisabledWithoutCredentials(t *testing.T) {
	n, err := NewTelegramNotifier("", 42)
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), "hello"))

	var zero *TelegramNotifier
	assert.NoError(t, zero.Notify(context.Background(), "hello"))
}

func TestTelegramNotifier_SendsToChat(t *testing.T) {
	rec := &recordingSender{}
	n := &TelegramNotifier{bot: rec, chatID: 777}

	require.NoError(t, n.Notify(context.Background(), "winner recorded"))

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, int64(777), rec.msgs[0].ChatID)
	assert.Equal(t, "winner recorded", rec.msgs[0].Text)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	n := &TelegramNotifier{bot: &recordingSender{err: errors.New("blocked")}, chatID: 1}
	err := n.Notify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestTelegramNotifier_CancelledContext(t *testing.T) {
	rec := &recordingSender{}
	n := &TelegramNotifier{bot: rec, chatID: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Notify(ctx, "x"), context.Canceled)
	assert.Empty(t, rec.msgs)
}
