package store

import (
	"slices"
	"strconv"
	"strings"

	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

// WinnerInput is a race result submission. Only WalletAddress is required.
type WinnerInput struct {
	RaceID        string   `json:"raceId"`
	WalletAddress string   `json:"walletAddress"`
	PrizeAmount   *float64 `json:"prizeAmount"`
	PaymentTxHash *string  `json:"paymentTxHash"`
	PaymentStatus string   `json:"paymentStatus"`
}

type WinnerSummary struct {
	RaceID        string        `json:"raceId"`
	WalletAddress string        `json:"walletAddress"`
	PrizeAmount   float64       `json:"prizeAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

type WinnerStats struct {
	TotalRecords     int             `json:"totalRecords"`
	TotalSubmissions int64           `json:"totalSubmissions"`
	TotalPrize       float64         `json:"totalPrize"`
	CompletedPrize   float64         `json:"completedPrize"`
	PendingPayments  int             `json:"pendingPayments"`
	Recent           []WinnerSummary `json:"recent"`
}

// RecordWinner validates in, fills defaults and inserts the record at the head
// of the ledger, evicting the oldest entries past the cap.
func (s *Store) RecordWinner(in WinnerInput) (WinnerRecord, error) {
	addr := strings.TrimSpace(in.WalletAddress)
	if addr == "" {
		return WinnerRecord{}, &ValidationError{Field: "walletAddress", Reason: "required"}
	}

	now := s.now()
	rec := WinnerRecord{
		RaceID:        strings.TrimSpace(in.RaceID),
		WalletAddress: addr,
		PrizeAmount:   s.opts.DefaultPrize,
		PaymentTxHash: in.PaymentTxHash,
		PaymentStatus: PaymentCompleted,
		Timestamp:     now,
	}
	if rec.RaceID == "" {
		rec.RaceID = strconv.FormatInt(now.UnixMilli(), 10)
	}
	if in.PrizeAmount != nil {
		if *in.PrizeAmount < 0 {
			return WinnerRecord{}, &ValidationError{Field: "prizeAmount", Reason: "must not be negative"}
		}
		rec.PrizeAmount = *in.PrizeAmount
	}
	if in.PaymentStatus != "" {
		status := PaymentStatus(in.PaymentStatus)
		if !status.Valid() {
			return WinnerRecord{}, &ValidationError{Field: "paymentStatus", Reason: "must be pending, pending_funds or completed"}
		}
		rec.PaymentStatus = status
	}

	s.mu.Lock()
	winners := make([]WinnerRecord, 0, min(len(s.doc.Winners)+1, s.opts.MaxWinners))
	winners = append(winners, rec)
	winners = append(winners, s.doc.Winners...)
	if len(winners) > s.opts.MaxWinners {
		winners = winners[:s.opts.MaxWinners]
	}
	s.doc.Winners = winners
	s.doc.Stats.TotalWinners++
	s.mu.Unlock()

	logging.LogSuccess("Winner recorded",
		zap.String("race_id", rec.RaceID),
		zap.String("wallet", rec.WalletAddress),
		zap.Float64("prize", rec.PrizeAmount))

	s.saveAsync()
	return rec, nil
}

// Winners returns the newest limit records; limit <= 0 returns all.
func (s *Store) Winners(limit int) []WinnerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.doc.Winners)
	if limit > 0 && limit < n {
		n = limit
	}
	return slices.Clone(s.doc.Winners[:n])
}

func (s *Store) WinnersByWallet(addr string) []WinnerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []WinnerRecord{}
	for _, w := range s.doc.Winners {
		if w.WalletAddress == addr {
			out = append(out, w)
		}
	}
	return out
}

// WinnerByRace returns the newest record for raceID or ErrNotFound.
func (s *Store) WinnerByRace(raceID string) (WinnerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.doc.Winners {
		if w.RaceID == raceID {
			return w, nil
		}
	}
	return WinnerRecord{}, ErrNotFound
}

func (s *Store) WinnerStats() WinnerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := WinnerStats{
		TotalRecords:     len(s.doc.Winners),
		TotalSubmissions: s.doc.Stats.TotalWinners,
		Recent:           []WinnerSummary{},
	}
	for i, w := range s.doc.Winners {
		st.TotalPrize += w.PrizeAmount
		switch w.PaymentStatus {
		case PaymentCompleted:
			st.CompletedPrize += w.PrizeAmount
		case PaymentPending, PaymentPendingFunds:
			st.PendingPayments++
		}
		if i < 5 {
			st.Recent = append(st.Recent, WinnerSummary{
				RaceID:        w.RaceID,
				WalletAddress: w.WalletAddress,
				PrizeAmount:   w.PrizeAmount,
				PaymentStatus: w.PaymentStatus,
			})
		}
	}
	return st
}

// CleanupWinners keeps the newest keep records and returns how many were removed.
func (s *Store) CleanupWinners(keep int) int {
	if keep < 0 {
		keep = 0
	}
	s.mu.Lock()
	removed := len(s.doc.Winners) - keep
	if removed <= 0 {
		s.mu.Unlock()
		return 0
	}
	s.doc.Winners = slices.Clone(s.doc.Winners[:keep])
	s.mu.Unlock()

	logging.LogInfo("Winner ledger cleaned up", zap.Int("removed", removed), zap.Int("kept", keep))
	s.saveAsync()
	return removed
}
