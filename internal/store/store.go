package store

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultMaxHistory   = 1000
	DefaultMaxWinners   = 100
	DefaultBackupKeep   = 10
	DefaultPrizeAmount  = 0.1
	DefaultHistoryLimit = 50
)

// BackupSink receives a copy of every backup written to disk.
type BackupSink interface {
	Upload(ctx context.Context, name string, data []byte) error
}

type Options struct {
	Path         string
	BackupDir    string
	BackupKeep   int
	MaxHistory   int
	MaxWinners   int
	DefaultPrize float64

	TokenAddress string
	TokenName    string

	AutosaveInterval time.Duration
	BackupInterval   time.Duration

	Sink BackupSink
	Now  func() time.Time
	Rand *rand.Rand
}

func (o *Options) applyDefaults() {
	if o.MaxHistory <= 0 {
		o.MaxHistory = DefaultMaxHistory
	}
	if o.MaxWinners <= 0 {
		o.MaxWinners = DefaultMaxWinners
	}
	if o.BackupKeep <= 0 {
		o.BackupKeep = DefaultBackupKeep
	}
	if o.DefaultPrize <= 0 {
		o.DefaultPrize = DefaultPrizeAmount
	}
	if o.AutosaveInterval <= 0 {
		o.AutosaveInterval = 5 * time.Minute
	}
	if o.BackupInterval <= 0 {
		o.BackupInterval = time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Store holds the holder snapshot, the selection history and the winner
// ledger. One RWMutex guards the document; saves are serialized by saveMu.
type Store struct {
	opts Options

	mu  sync.RWMutex
	doc Document

	saveMu  sync.Mutex
	pending sync.WaitGroup
}

// New returns an in-memory store. Use Open to load from disk.
func New(opts Options) *Store {
	opts.applyDefaults()
	return &Store{
		opts: opts,
		doc:  defaultDocument(opts, opts.Now()),
	}
}

// Open creates a store and loads opts.Path. A missing file is created.
func Open(opts Options) (*Store, error) {
	s := New(opts)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) now() time.Time {
	return s.opts.Now()
}

// Close waits for in-flight saves and writes the final state.
func (s *Store) Close() error {
	s.pending.Wait()
	return s.Save()
}
