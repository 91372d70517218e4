// Package source fetches price batches for the relayer to submit.
package source

import (
	"context"

	"stdref/internal/wire"
)

// PriceData is one batch of rates resolved at the same time.
type PriceData struct {
	Prices      []wire.Price
	ResolveTime uint64
	RequestID   uint64
}

// Empty reports whether there is nothing to relay.
func (p PriceData) Empty() bool { return len(p.Prices) == 0 }

// Request converts the batch into a relay body.
func (p PriceData) Request() wire.RelayRequest {
	return wire.RelayRequest{
		Prices:      p.Prices,
		ResolveTime: wire.UInt64Str(p.ResolveTime),
		RequestID:   wire.UInt64Str(p.RequestID),
	}
}

type Source interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) (PriceData, error)
}

// Func adapts a function into a Source.
type Func struct {
	ID string
	F  func(ctx context.Context, symbols []string) (PriceData, error)
}

func (f Func) Name() string { return f.ID }

func (f Func) Fetch(ctx context.Context, symbols []string) (PriceData, error) {
	return f.F(ctx, symbols)
}
