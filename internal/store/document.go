package store

// Persisted shape of the whole process state. Every save writes the full
// document; Load unmarshals onto defaultDocument so fields added later keep
// their defaults when reading older files.

import (
	"time"
)

const DocumentVersion = "1.1.0"

// HolderEntry is one raw row produced by a holder source.
type HolderEntry struct {
	Address    string  `json:"address"`
	Balance    float64 `json:"balance"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank,omitempty"` // as reported by the source, not trusted
}

type HolderRecord struct {
	Address      string    `json:"address"`
	Balance      float64   `json:"balance"`
	Percentage   float64   `json:"percentage"`
	Rank         int       `json:"rank"`
	PreviousRank int       `json:"previousRank"`
	IsOG         bool      `json:"isOG"`
	AddedAt      time.Time `json:"addedAt"`
	LastSeen     time.Time `json:"lastSeen"`
	UpdateCount  int       `json:"updateCount"`
}

type CurrentWallet struct {
	HolderRecord
	SelectedAt time.Time `json:"selectedAt"`
}

type SelectionEvent struct {
	Address    string    `json:"address"`
	Balance    float64   `json:"balance"`
	Percentage float64   `json:"percentage"`
	Rank       int       `json:"rank"`
	Timestamp  time.Time `json:"timestamp"`
}

type PaymentStatus string

const (
	PaymentPending      PaymentStatus = "pending"
	PaymentPendingFunds PaymentStatus = "pending_funds"
	PaymentCompleted    PaymentStatus = "completed"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPendingFunds, PaymentCompleted:
		return true
	}
	return false
}

type WinnerRecord struct {
	RaceID        string        `json:"raceId"`
	WalletAddress string        `json:"walletAddress"`
	PrizeAmount   float64       `json:"prizeAmount"`
	PaymentTxHash *string       `json:"paymentTxHash"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Timestamp     time.Time     `json:"timestamp"`
}

type Counters struct {
	TotalSelections       int64      `json:"totalSelections"`
	TotalWinners          int64      `json:"totalWinners"`
	TotalWalletsProcessed int        `json:"totalWalletsProcessed"`
	LastUpdate            *time.Time `json:"lastUpdate"`
	CreatedAt             time.Time  `json:"createdAt"`

	// Older files carry one combined counter for selections and winners.
	LegacyTotalRaces *int64 `json:"totalRaces,omitempty"`
}

type Metadata struct {
	TokenAddress string `json:"tokenAddress"`
	TokenName    string `json:"tokenName"`
	Version      string `json:"version"`
}

type Document struct {
	Wallets       []HolderRecord   `json:"wallets"`
	CurrentWallet *CurrentWallet   `json:"currentWallet"`
	History       []SelectionEvent `json:"history"`
	SoldWallets   []string         `json:"soldWallets"`
	OGWallets     []string         `json:"ogWallets"`
	Stats         Counters         `json:"stats"`
	Metadata      Metadata         `json:"metadata"`
	Winners       []WinnerRecord   `json:"winners"`
}

func defaultDocument(opts Options, now time.Time) Document {
	return Document{
		Wallets:     []HolderRecord{},
		History:     []SelectionEvent{},
		SoldWallets: []string{},
		OGWallets:   []string{},
		Winners:     []WinnerRecord{},
		Stats: Counters{
			CreatedAt: now,
		},
		Metadata: Metadata{
			TokenAddress: opts.TokenAddress,
			TokenName:    opts.TokenName,
			Version:      DocumentVersion,
		},
	}
}

// normalize repairs a freshly loaded document: nil slices from explicit
// nulls, the legacy counter and metadata the config now owns.
func (d *Document) normalize(opts Options) {
	if d.Wallets == nil {
		d.Wallets = []HolderRecord{}
	}
	if d.History == nil {
		d.History = []SelectionEvent{}
	}
	if d.SoldWallets == nil {
		d.SoldWallets = []string{}
	}
	if d.OGWallets == nil {
		d.OGWallets = []string{}
	}
	if d.Winners == nil {
		d.Winners = []WinnerRecord{}
	}

	if d.Stats.LegacyTotalRaces != nil {
		if d.Stats.TotalSelections == 0 {
			d.Stats.TotalSelections = *d.Stats.LegacyTotalRaces
		}
		d.Stats.LegacyTotalRaces = nil
	}

	if opts.TokenAddress != "" {
		d.Metadata.TokenAddress = opts.TokenAddress
	}
	if opts.TokenName != "" {
		d.Metadata.TokenName = opts.TokenName
	}
	d.Metadata.Version = DocumentVersion

	if opts.MaxHistory > 0 && len(d.History) > opts.MaxHistory {
		d.History = d.History[:opts.MaxHistory]
	}
	if opts.MaxWinners > 0 && len(d.Winners) > opts.MaxWinners {
		d.Winners = d.Winners[:opts.MaxWinners]
	}
}
