package oracle

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// Fixed-point scales: stored rates carry 9 decimals, cross rates 18.
const (
	E9  uint64 = 1_000_000_000
	E18 uint64 = 1_000_000_000_000_000_000
)

// DefaultBaseSymbol is the quote unit every stored rate is expressed in.
const DefaultBaseSymbol Symbol = "USD"

// Symbol identifies a priced asset.
type Symbol string

// Identity is an authenticated caller (account) identifier.
type Identity string

// ReferenceDatum is the latest accepted rate for one symbol.
type ReferenceDatum struct {
	Rate        uint64 `json:"rate"`
	ResolveTime uint64 `json:"resolve_time"`
	RequestID   uint64 `json:"request_id"`
}

// ReferencePrice is the cross rate of base over quote, scaled by 1e18.
// Rate always fits in 128 bits.
type ReferencePrice struct {
	Rate             *uint256.Int
	BaseResolveTime  uint64
	QuoteResolveTime uint64
}

// SymbolRate is one (symbol, rate) element of a relay batch.
type SymbolRate struct {
	Symbol Symbol
	Rate   uint64
}

// SymbolPair is a (base, quote) query.
type SymbolPair struct {
	Base  Symbol
	Quote Symbol
}

// Result is one element of a bulk query; exactly one of Price and Err is set.
type Result struct {
	Price *ReferencePrice
	Err   error
}

// Clock supplies the current timestamp in seconds.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() uint64 { return uint64(time.Now().Unix()) })

// AccessState persists the admin identity and the relayer set.
type AccessState interface {
	LoadAdmin(ctx context.Context) (Identity, bool, error)
	StoreAdmin(ctx context.Context, id Identity) error
	HasRelayer(ctx context.Context, id Identity) (bool, error)
	PutRelayer(ctx context.Context, id Identity) error
	DeleteRelayer(ctx context.Context, id Identity) error
}

// DatumMap persists the symbol to datum mapping.
type DatumMap interface {
	GetDatum(ctx context.Context, symbol Symbol) (ReferenceDatum, bool, error)
	PutDatum(ctx context.Context, symbol Symbol, d ReferenceDatum) error
}

// Substrate is the key-value state backing one oracle instance.
//
//go:generate mockgen -package=oracle_test -destination=mock_substrate_test.go stdref/internal/oracle Substrate,CodeReplacer
type Substrate interface {
	AccessState
	DatumMap
}

// CodeReplacer performs the actual code replacement once authorized.
type CodeReplacer interface {
	ReplaceCode(ctx context.Context, codeHash [32]byte) error
}

// Outcome classifies what a relay did to a single symbol.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeUpdated    Outcome = "updated"
	OutcomeStale      Outcome = "stale"
	OutcomeForced     Outcome = "forced"
	OutcomeBaseSymbol Outcome = "base_symbol"
)

// Recorder observes oracle activity. Implementations must be cheap and non-blocking.
type Recorder interface {
	RelayOutcome(symbol Symbol, outcome Outcome)
	Query(ok bool)
	Unauthorized(op string)
}

type nopRecorder struct{}

func (nopRecorder) RelayOutcome(Symbol, Outcome) {}
func (nopRecorder) Query(bool)                   {}
func (nopRecorder) Unauthorized(string)          {}
