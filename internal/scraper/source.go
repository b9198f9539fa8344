package scraper

import (
	"context"
	"errors"

	"holders-api/internal/store"
)

var (
	ErrEmptyResult = errors.New("holder source returned no entries")
	ErrNoSource    = errors.New("no holder source configured")
)

// FetchRequest describes one attempt against a holder source.
type FetchRequest struct {
	TokenAddress string
	Proxy        *Proxy // nil means direct egress
	Attempt      int    // 1-based
}

// HolderSource produces the raw holder list for a token. Implementations
// enforce their own timeouts through ctx.
type HolderSource interface {
	Name() string
	FetchHolders(ctx context.Context, req FetchRequest) ([]store.HolderEntry, error)
}

// SourceFunc adapts a plain function to HolderSource.
type SourceFunc func(ctx context.Context, req FetchRequest) ([]store.HolderEntry, error)

func (f SourceFunc) Name() string { return "func" }

func (f SourceFunc) FetchHolders(ctx context.Context, req FetchRequest) ([]store.HolderEntry, error) {
	return f(ctx, req)
}
