package store

import (
	"time"
)

// Distribution buckets by percentage of supply.
type Distribution struct {
	Whales   int `json:"whales"`   // > 1%
	Dolphins int `json:"dolphins"` // > 0.1%
	Fish     int `json:"fish"`     // > 0.01%
	Shrimp   int `json:"shrimp"`
}

type StoreStats struct {
	TotalSelections       int64         `json:"totalSelections"`
	TotalWinners          int64         `json:"totalWinners"`
	TotalWalletsProcessed int           `json:"totalWalletsProcessed"`
	LastUpdate            *time.Time    `json:"lastUpdate"`
	CreatedAt             time.Time     `json:"createdAt"`
	CurrentWalletsCount   int           `json:"currentWalletsCount"`
	HistoryCount          int           `json:"historyCount"`
	SoldWalletsCount      int           `json:"soldWalletsCount"`
	OGWalletsCount        int           `json:"ogWalletsCount"`
	TopHolder             *HolderRecord `json:"topHolder"`
	TotalBalance          float64       `json:"totalBalance"`
	AverageBalance        float64       `json:"averageBalance"`
	WhaleCount            int           `json:"whaleCount"`
	Distribution          *Distribution `json:"distribution"`
}

func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := StoreStats{
		TotalSelections:       s.doc.Stats.TotalSelections,
		TotalWinners:          s.doc.Stats.TotalWinners,
		TotalWalletsProcessed: s.doc.Stats.TotalWalletsProcessed,
		LastUpdate:            s.doc.Stats.LastUpdate,
		CreatedAt:             s.doc.Stats.CreatedAt,
		CurrentWalletsCount:   len(s.doc.Wallets),
		HistoryCount:          len(s.doc.History),
		SoldWalletsCount:      len(s.doc.SoldWallets),
		OGWalletsCount:        len(s.doc.OGWallets),
	}

	if len(s.doc.Wallets) == 0 {
		return st
	}

	for _, w := range s.doc.Wallets {
		if w.Rank == 1 {
			top := w
			st.TopHolder = &top
		}
		st.TotalBalance += w.Balance
	}
	st.AverageBalance = st.TotalBalance / float64(len(s.doc.Wallets))

	dist := ComputeDistribution(s.doc.Wallets)
	st.Distribution = &dist
	st.WhaleCount = dist.Whales
	return st
}

// ComputeDistribution buckets wallets by their share of supply.
func ComputeDistribution(wallets []HolderRecord) Distribution {
	var d Distribution
	for _, w := range wallets {
		switch {
		case w.Percentage > 1:
			d.Whales++
		case w.Percentage > 0.1:
			d.Dolphins++
		case w.Percentage > 0.01:
			d.Fish++
		default:
			d.Shrimp++
		}
	}
	return d
}
