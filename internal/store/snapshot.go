package store

import (
	"slices"
	"sort"
	"time"

	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

// ReplaceHolders installs entries as the new authoritative snapshot.
// Readers see either the old or the new wallet list, never a mix.
func (s *Store) ReplaceHolders(entries []HolderEntry) []HolderRecord {
	now := s.now()

	s.mu.Lock()
	previous := s.doc.Wallets
	if len(s.doc.OGWallets) == 0 && len(entries) > 0 {
		s.doc.OGWallets = addressesOf(entries)
	}
	wallets := rankEntries(entries, previous, s.doc.OGWallets, now)

	sold := SoldAddresses(previous, wallets)
	s.doc.Wallets = wallets
	s.doc.SoldWallets = unionAddresses(s.doc.SoldWallets, sold)
	s.doc.Stats.TotalWalletsProcessed = len(entries)
	s.doc.Stats.LastUpdate = &now
	soldTotal := len(s.doc.SoldWallets)
	s.mu.Unlock()

	logging.LogInfo("Holders replaced",
		zap.Int("wallets", len(wallets)),
		zap.Int("sold_this_round", len(sold)),
		zap.Int("sold_total", soldTotal))

	s.saveAsync()
	return slices.Clone(wallets)
}

// rankEntries stamps, sorts and densely ranks a snapshot. Ties keep input order.
func rankEntries(entries []HolderEntry, previous []HolderRecord, og []string, now time.Time) []HolderRecord {
	prevRank := make(map[string]int, len(previous))
	for _, w := range previous {
		prevRank[w.Address] = w.Rank
	}
	ogSet := make(map[string]struct{}, len(og))
	for _, a := range og {
		ogSet[a] = struct{}{}
	}

	wallets := make([]HolderRecord, len(entries))
	for i, e := range entries {
		_, isOG := ogSet[e.Address]
		wallets[i] = HolderRecord{
			Address:      e.Address,
			Balance:      e.Balance,
			Percentage:   e.Percentage,
			PreviousRank: prevRank[e.Address],
			IsOG:         isOG,
			AddedAt:      now,
			LastSeen:     now,
			UpdateCount:  1,
		}
	}

	sort.SliceStable(wallets, func(i, j int) bool {
		return wallets[i].Balance > wallets[j].Balance
	})
	for i := range wallets {
		wallets[i].Rank = i + 1
	}
	return wallets
}

// SoldAddresses returns addresses present in previous but absent from current,
// in previous order.
func SoldAddresses(previous, current []HolderRecord) []string {
	currentSet := make(map[string]struct{}, len(current))
	for _, w := range current {
		currentSet[w.Address] = struct{}{}
	}

	var sold []string
	for _, w := range previous {
		if _, ok := currentSet[w.Address]; !ok {
			sold = append(sold, w.Address)
		}
	}
	return sold
}

func unionAddresses(existing, add []string) []string {
	if len(add) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, a := range existing {
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range add {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func addressesOf(entries []HolderEntry) []string {
	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Address]; ok {
			continue
		}
		seen[e.Address] = struct{}{}
		out = append(out, e.Address)
	}
	return out
}

// SelectRandom picks the next current wallet. ok is false when the store is
// empty, in which case nothing changes.
func (s *Store) SelectRandom(weighted bool) (HolderRecord, bool) {
	now := s.now()

	s.mu.Lock()
	if len(s.doc.Wallets) == 0 {
		s.mu.Unlock()
		return HolderRecord{}, false
	}

	idx := pickIndex(s.doc.Wallets, weighted, s.opts.Rand.Float64, s.opts.Rand.IntN)
	selected := s.doc.Wallets[idx]

	s.doc.CurrentWallet = &CurrentWallet{HolderRecord: selected, SelectedAt: now}
	event := SelectionEvent{
		Address:    selected.Address,
		Balance:    selected.Balance,
		Percentage: selected.Percentage,
		Rank:       selected.Rank,
		Timestamp:  now,
	}
	history := make([]SelectionEvent, 0, min(len(s.doc.History)+1, s.opts.MaxHistory))
	history = append(history, event)
	history = append(history, s.doc.History...)
	if len(history) > s.opts.MaxHistory {
		history = history[:s.opts.MaxHistory]
	}
	s.doc.History = history
	s.doc.Stats.TotalSelections++
	s.mu.Unlock()

	logging.LogInfo("Wallet selected",
		zap.String("address", selected.Address),
		zap.Int("rank", selected.Rank),
		zap.Bool("weighted", weighted))

	s.saveAsync()
	return selected, true
}

// pickIndex draws r in [0, total) and walks the list subtracting balances;
// the first wallet that drives r below zero wins. A zero total falls back
// to a uniform pick.
func pickIndex(wallets []HolderRecord, weighted bool, float func() float64, intn func(int) int) int {
	if !weighted {
		return intn(len(wallets))
	}

	var total float64
	for _, w := range wallets {
		total += w.Balance
	}
	if total <= 0 {
		return intn(len(wallets))
	}

	r := float() * total
	for i, w := range wallets {
		r -= w.Balance
		if r < 0 {
			return i
		}
	}
	// float rounding can leave r at exactly zero after the last subtraction
	for i := len(wallets) - 1; i >= 0; i-- {
		if wallets[i].Balance > 0 {
			return i
		}
	}
	return len(wallets) - 1
}

func (s *Store) AllWallets() []HolderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.Wallets)
}

func (s *Store) CurrentWallet() (CurrentWallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc.CurrentWallet == nil {
		return CurrentWallet{}, false
	}
	return *s.doc.CurrentWallet, true
}

// History returns the newest limit selection events. limit <= 0 means the default.
func (s *Store) History(limit int) []SelectionEvent {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.doc.History))
	return slices.Clone(s.doc.History[:n])
}

func (s *Store) SoldWallets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.SoldWallets)
}

func (s *Store) OGWallets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.OGWallets)
}

func (s *Store) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Metadata
}
