package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"holders-api/internal/scraper"
	"holders-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	store *store.Store
	calls atomic.Int32
	next  []store.HolderEntry
}

func (f *fakeScraper) ScrapeHolders(ctx context.Context) scraper.Result {
	f.calls.Add(1)
	wallets := f.store.ReplaceHolders(f.next)
	return scraper.Result{Wallets: wallets, Outcome: scraper.OutcomeCommitted, Attempts: 1}
}

func (f *fakeScraper) Stats() scraper.Stats {
	return scraper.Stats{State: "idle", SuccessRate: "0%"}
}

func (f *fakeScraper) NextAllowed() time.Time { return time.Time{} }

func newTestServer(t *testing.T, opts Options) (*Server, *store.Store, *fakeScraper) {
	t.Helper()
	st := store.New(store.Options{BackupDir: t.TempDir()})
	sc := &fakeScraper{store: st}
	return NewServer(st, sc, opts), st, sc
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func seed(st *store.Store) {
	st.ReplaceHolders([]store.HolderEntry{
		{Address: "A", Balance: 600, Percentage: 60},
		{Address: "B", Balance: 300, Percentage: 30},
		{Address: "C", Balance: 50, Percentage: 5},
		{Address: "D", Balance: 30, Percentage: 3},
		{Address: "E", Balance: 15, Percentage: 1.5},
		{Address: "F", Balance: 5, Percentage: 0.5},
	})
}

func TestHealthAndInfo(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{Info: Info{TokenName: "TKN", TokenAddress: "So11111111111111111111111111111111111111112"}})

	code, body := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, body = do(t, srv.Handler(), http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "TKN", body["token"])
	assert.Equal(t, "So11...1112", body["tokenAddress"])
}

func TestCurrentWalletNotFoundThenRotate(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{WeightedRotate: true})

	code, body := do(t, srv.Handler(), http.MethodGet, "/api/current-wallet", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	code, _ = do(t, srv.Handler(), http.MethodPost, "/api/rotate-wallet", "")
	assert.Equal(t, http.StatusNotFound, code)

	seed(st)
	code, body = do(t, srv.Handler(), http.MethodPost, "/api/rotate-wallet", "")
	require.Equal(t, http.StatusOK, code)
	selected := body["data"].(map[string]any)["wallet"]

	code, body = do(t, srv.Handler(), http.MethodGet, "/api/current-wallet", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, selected, body["data"].(map[string]any)["wallet"])
}

func TestAllWalletsPagination(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})
	seed(st)

	code, body := do(t, srv.Handler(), http.MethodGet, "/api/all-wallets?limit=2&offset=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 6, body["total"])
	assert.EqualValues(t, 2, body["count"])

	rows := body["data"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.EqualValues(t, 3, first["rank"])
	assert.Equal(t, "C", first["address"])

	_, body = do(t, srv.Handler(), http.MethodGet, "/api/all-wallets?offset=100", "")
	assert.Empty(t, body["data"])

	code, body = do(t, srv.Handler(), http.MethodGet, "/api/all-wallets?limit=9223372036854775807&offset=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 5, body["count"])
	rows = body["data"].([]any)
	require.Len(t, rows, 5)
	assert.EqualValues(t, 2, rows[0].(map[string]any)["rank"])
}

func TestTopHoldersWhaleFlag(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})
	seed(st)

	_, body := do(t, srv.Handler(), http.MethodGet, "/api/top-holders/6", "")
	rows := body["data"].([]any)
	require.Len(t, rows, 6)
	for i, r := range rows {
		assert.Equal(t, i < 5, r.(map[string]any)["isWhale"], "row %d", i)
	}

	_, body = do(t, srv.Handler(), http.MethodGet, "/api/top-holders", "")
	assert.EqualValues(t, 6, body["count"])
}

func TestForceUpdateReportsHolders(t *testing.T) {
	srv, _, sc := newTestServer(t, Options{})
	sc.next = []store.HolderEntry{{Address: "X", Balance: 1}, {Address: "Y", Balance: 2}}

	code, body := do(t, srv.Handler(), http.MethodPost, "/api/force-update", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["holdersFound"])
	assert.Equal(t, int32(1), sc.calls.Load())
}

func TestStatsEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})
	seed(st)

	code, body := do(t, srv.Handler(), http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]any)
	storeStats := data["store"].(map[string]any)
	assert.EqualValues(t, 6, storeStats["currentWalletsCount"])
	assert.NotNil(t, storeStats["distribution"])
	assert.Contains(t, data, "winners")
	assert.Contains(t, data, "scraper")
}

func TestWinnerEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})
	h := srv.Handler()

	code, _ := do(t, h, http.MethodPost, "/api/winners", `{"raceId":"r1"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := do(t, h, http.MethodPost, "/api/winners", `{"walletAddress":"W1"}`)
	require.Equal(t, http.StatusCreated, code)
	rec := body["data"].(map[string]any)
	assert.Equal(t, "completed", rec["paymentStatus"])
	assert.InDelta(t, 0.1, rec["prizeAmount"], 1e-9)

	code, _ = do(t, h, http.MethodPost, "/api/winners", `{"walletAddress":"W2","raceId":"r2","paymentStatus":"pending"}`)
	require.Equal(t, http.StatusCreated, code)

	_, body = do(t, h, http.MethodGet, "/api/winners?wallet=W2", "")
	assert.EqualValues(t, 1, body["count"])

	code, body = do(t, h, http.MethodGet, "/api/winners/race/r2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "W2", body["data"].(map[string]any)["walletAddress"])

	code, _ = do(t, h, http.MethodGet, "/api/winners/race/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	_, body = do(t, h, http.MethodGet, "/api/winners/stats", "")
	assert.EqualValues(t, 1, body["data"].(map[string]any)["pendingPayments"])

	_, body = do(t, h, http.MethodPost, "/api/winners/cleanup?keep=1", "")
	assert.EqualValues(t, 1, body["data"].(map[string]any)["removed"])
}

func TestLedgersAndExport(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})
	seed(st)
	st.ReplaceHolders([]store.HolderEntry{{Address: "A", Balance: 1}})

	_, body := do(t, srv.Handler(), http.MethodGet, "/api/sold-wallets", "")
	assert.EqualValues(t, 5, body["count"])

	_, body = do(t, srv.Handler(), http.MethodGet, "/api/og-wallets", "")
	assert.EqualValues(t, 6, body["count"])

	code, body := do(t, srv.Handler(), http.MethodPost, "/api/export?format=csv", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasSuffix(body["data"].(map[string]any)["file"].(string), ".csv"))

	code, _ = do(t, srv.Handler(), http.MethodPost, "/api/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDistributionChart(t *testing.T) {
	srv, st, _ := newTestServer(t, Options{})
	seed(st)

	req := httptest.NewRequest(http.MethodGet, "/api/charts/distribution.png", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{RateLimit: true, RateLimitWindow: time.Hour, RateLimitMax: 3})

	for i := 0; i < 3; i++ {
		code, _ := do(t, srv.Handler(), http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, code)
	}
	code, body := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests", body["error"])
}

func TestWebhook(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})
	code, body := do(t, srv.Handler(), http.MethodPost, "/api/webhook", `{"event":"race_finished"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
}
