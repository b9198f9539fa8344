package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/scraper"
	"holders-api/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Scraper is the part of the scrape controller the API triggers and reports on.
type Scraper interface {
	ScrapeHolders(ctx context.Context) scraper.Result
	Stats() scraper.Stats
	NextAllowed() time.Time
}

// Notifier is told about recorded winners.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Info struct {
	Name         string
	Version      string
	TokenName    string
	TokenAddress string
}

type Options struct {
	Info            Info
	WeightedRotate  bool
	AutoUpdate      bool
	UpdateInterval  time.Duration
	RateLimit       bool
	RateLimitWindow time.Duration
	RateLimitMax    int
	Notifier        Notifier
}

// Server exposes the store and the scrape controller over HTTP.
type Server struct {
	store     *store.Store
	scraper   Scraper
	opts      Options
	router    *chi.Mux
	startedAt time.Time
}

func NewServer(st *store.Store, sc Scraper, opts Options) *Server {
	if opts.Info.Name == "" {
		opts.Info.Name = "Holders API"
	}
	if opts.Info.Version == "" {
		opts.Info.Version = "1.0.0"
	}

	s := &Server{
		store:     st,
		scraper:   sc,
		opts:      opts,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.RateLimit {
		r.Use(newIPRateLimiter(opts.RateLimitWindow, opts.RateLimitMax).middleware)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleInfo)
		s.registerHolders(r)
		s.registerWinners(r)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// force-update blocks for the whole scrape cycle
		WriteTimeout: 10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogSuccess(fmt.Sprintf("HTTP server listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogWarn("HTTP server shutdown", zap.Error(err))
		return err
	}
	logging.LogInfo("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"status":    "healthy",
		"uptime":    time.Since(s.startedAt).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{
		"name":         s.opts.Info.Name,
		"version":      s.opts.Info.Version,
		"token":        s.opts.Info.TokenName,
		"tokenAddress": shortAddress(s.opts.Info.TokenAddress),
		"endpoints": map[string]string{
			"current":     "/api/current-wallet",
			"all":         "/api/all-wallets",
			"stats":       "/api/stats",
			"history":     "/api/history",
			"rotate":      "/api/rotate-wallet",
			"update":      "/api/force-update",
			"topHolders":  "/api/top-holders/:count",
			"soldWallets": "/api/sold-wallets",
			"ogWallets":   "/api/og-wallets",
			"winners":     "/api/winners",
			"chart":       "/api/charts/distribution.png",
			"export":      "/api/export",
		},
	})
}

// shortAddress renders "ABCD...WXYZ".
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
