package api

import (
	"bytes"
	"net/http"
	"sort"
	"strconv"
	"time"

	"holders-api/internal/features/charts"
	logging "holders-api/internal/infra/log"
	"holders-api/internal/scraper"
	"holders-api/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) registerHolders(r chi.Router) {
	r.Get("/current-wallet", s.handleCurrentWallet)
	r.Get("/all-wallets", s.handleAllWallets)
	r.Get("/top-holders", s.handleTopHolders)
	r.Get("/top-holders/{count}", s.handleTopHolders)
	r.Get("/stats", s.handleStats)
	r.Get("/history", s.handleHistory)
	r.Get("/sold-wallets", s.handleSoldWallets)
	r.Get("/og-wallets", s.handleOGWallets)
	r.Get("/charts/distribution.png", s.handleDistributionChart)
	r.Post("/rotate-wallet", s.handleRotateWallet)
	r.Post("/force-update", s.handleForceUpdate)
	r.Post("/export", s.handleExport)
	r.Post("/webhook", s.handleWebhook)
}

func (s *Server) handleCurrentWallet(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.store.CurrentWallet()
	if !ok {
		writeError(w, http.StatusNotFound, "No wallet selected")
		return
	}
	writeData(w, map[string]any{
		"wallet":     cur.Address,
		"balance":    cur.Balance,
		"percentage": cur.Percentage,
		"rank":       cur.Rank,
		"isOG":       cur.IsOG,
		"timestamp":  cur.SelectedAt,
	}, nil)
}

type walletRow struct {
	Rank       int       `json:"rank"`
	Address    string    `json:"address"`
	Balance    float64   `json:"balance"`
	Percentage float64   `json:"percentage"`
	IsOG       bool      `json:"isOG"`
	LastSeen   time.Time `json:"lastSeen"`
}

func (s *Server) handleAllWallets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 500)
	offset := intParam(q.Get("offset"), 0)
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	wallets := s.store.AllWallets()
	if q.Get("sort") == "percentage" {
		sort.SliceStable(wallets, func(i, j int) bool { return wallets[i].Percentage > wallets[j].Percentage })
	}

	start := min(offset, len(wallets))
	end := len(wallets)
	if limit < end-start {
		end = start + limit
	}
	page := wallets[start:end]

	rows := make([]walletRow, len(page))
	for i, h := range page {
		rows[i] = walletRow{
			Rank:       offset + i + 1,
			Address:    h.Address,
			Balance:    h.Balance,
			Percentage: h.Percentage,
			IsOG:       h.IsOG,
			LastSeen:   h.LastSeen,
		}
	}
	writeData(w, rows, envelope{"total": len(wallets), "count": len(rows), "offset": offset})
}

type topHolder struct {
	Rank         int     `json:"rank"`
	Address      string  `json:"address"`
	Balance      float64 `json:"balance"`
	Percentage   float64 `json:"percentage"`
	PreviousRank int     `json:"previousRank"`
	IsWhale      bool    `json:"isWhale"`
	IsOG         bool    `json:"isOG"`
}

func (s *Server) handleTopHolders(w http.ResponseWriter, r *http.Request) {
	count := intParam(chi.URLParam(r, "count"), 10)
	if count <= 0 {
		count = 10
	}
	wallets := s.store.AllWallets()
	n := min(count, len(wallets))

	out := make([]topHolder, n)
	for i := 0; i < n; i++ {
		h := wallets[i]
		out[i] = topHolder{
			Rank:         i + 1,
			Address:      h.Address,
			Balance:      h.Balance,
			Percentage:   h.Percentage,
			PreviousRank: h.PreviousRank,
			IsWhale:      i < 5,
			IsOG:         h.IsOG,
		}
	}
	writeData(w, out, envelope{"count": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	scr := s.scraper.Stats()
	data := map[string]any{
		"store":      s.store.Stats(),
		"scraper":    scr,
		"winners":    s.store.WinnerStats(),
		"lastScrape": scr.LastScrapeTime,
		"nextUpdate": s.nextUpdate(scr),
		"uptime":     time.Since(s.startedAt).Seconds(),
		"isRunning":  true,
	}
	writeData(w, data, nil)
}

// nextUpdate is the earliest time a scheduled scrape can run again.
func (s *Server) nextUpdate(scr scraper.Stats) *time.Time {
	if !s.opts.AutoUpdate {
		return nil
	}
	next := s.scraper.NextAllowed()
	if scr.LastAttemptTime != nil {
		if t := scr.LastAttemptTime.Add(s.opts.UpdateInterval); t.After(next) {
			next = t
		}
	}
	if next.IsZero() {
		return nil
	}
	return &next
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.store.History(intParam(r.URL.Query().Get("limit"), store.DefaultHistoryLimit))
	writeData(w, history, envelope{"count": len(history)})
}

func (s *Server) handleSoldWallets(w http.ResponseWriter, r *http.Request) {
	sold := s.store.SoldWallets()
	writeData(w, sold, envelope{"count": len(sold)})
}

func (s *Server) handleOGWallets(w http.ResponseWriter, r *http.Request) {
	og := s.store.OGWallets()
	writeData(w, og, envelope{"count": len(og)})
}

func (s *Server) handleRotateWallet(w http.ResponseWriter, r *http.Request) {
	selected, ok := s.store.SelectRandom(s.opts.WeightedRotate)
	if !ok {
		writeError(w, http.StatusNotFound, "No wallets available")
		return
	}
	logging.LogInfo("Wallet rotated manually", zap.String("wallet", shortAddress(selected.Address)))
	writeData(w, map[string]any{
		"wallet":     selected.Address,
		"balance":    selected.Balance,
		"percentage": selected.Percentage,
		"rank":       selected.Rank,
	}, nil)
}

func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	logging.LogInfo("Forced update requested")
	res := s.scraper.ScrapeHolders(r.Context())
	body := envelope{
		"success":      true,
		"message":      "Update completed",
		"holdersFound": len(res.Wallets),
		"outcome":      res.Outcome,
		"attempts":     res.Attempts,
	}
	if res.Err != nil {
		body["message"] = "Update failed, serving previous snapshot"
		body["lastError"] = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDistributionChart(w http.ResponseWriter, r *http.Request) {
	st := s.store.Stats()
	var dist store.Distribution
	if st.Distribution != nil {
		dist = *st.Distribution
	}

	var buf bytes.Buffer
	title := s.opts.Info.TokenName + " holders distribution"
	if err := charts.RenderDistribution(&buf, title, dist); err != nil {
		logging.LogError("Failed to render distribution chart", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := store.ExportFormat(r.URL.Query().Get("format"))
	path, err := s.store.Export(format)
	if err != nil {
		if isValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.LogError("Export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeData(w, map[string]string{"file": path}, nil)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Event string `json:"event"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	logging.LogInfo("Webhook received", zap.String("event", payload.Event))
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
