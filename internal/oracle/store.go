package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PriceStore owns the symbol to datum mapping and the staleness policy.
// It trusts its caller; authorization happens in the facade.
type PriceStore struct {
	data     DatumMap
	base     Symbol
	logger   *zap.Logger
	recorder Recorder
}

// NewPriceStore builds a store whose base symbol is synthesized on lookup.
func NewPriceStore(data DatumMap, base Symbol, logger *zap.Logger, recorder Recorder) *PriceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &PriceStore{data: data, base: base, logger: logger, recorder: recorder}
}

// BaseSymbol returns the reserved quote unit.
func (s *PriceStore) BaseSymbol() Symbol { return s.base }

// GetDatum returns the stored datum for symbol, or a synthetic {1e9, now, 0}
// for the base symbol without consulting the map.
func (s *PriceStore) GetDatum(ctx context.Context, symbol Symbol, now uint64) (ReferenceDatum, error) {
	if symbol == s.base {
		return ReferenceDatum{Rate: E9, ResolveTime: now, RequestID: 0}, nil
	}
	d, ok, err := s.data.GetDatum(ctx, symbol)
	if err != nil {
		return ReferenceDatum{}, fmt.Errorf("get datum %q: %w", symbol, err)
	}
	if !ok {
		return ReferenceDatum{}, ErrPairDoesNotExist
	}
	return d, nil
}

// Relay applies each update under the staleness policy: a symbol is
// overwritten only when resolveTime is strictly newer than the stored one.
// Symbols are independent; an error leaves earlier symbols applied.
func (s *PriceStore) Relay(ctx context.Context, updates []SymbolRate, resolveTime, requestID uint64) error {
	for _, u := range updates {
		cur, ok, err := s.data.GetDatum(ctx, u.Symbol)
		if err != nil {
			return fmt.Errorf("get datum %q: %w", u.Symbol, err)
		}
		outcome := OutcomeCreated
		if ok {
			if resolveTime <= cur.ResolveTime {
				s.logger.Debug("stale relay ignored",
					zap.String("symbol", string(u.Symbol)),
					zap.Uint64("resolve_time", resolveTime),
					zap.Uint64("stored_resolve_time", cur.ResolveTime))
				s.recorder.RelayOutcome(u.Symbol, OutcomeStale)
				continue
			}
			outcome = OutcomeUpdated
		}
		if err := s.put(ctx, u, resolveTime, requestID, outcome); err != nil {
			return err
		}
	}
	return nil
}

// ForceRelay overwrites every symbol regardless of the stored resolve time.
func (s *PriceStore) ForceRelay(ctx context.Context, updates []SymbolRate, resolveTime, requestID uint64) error {
	for _, u := range updates {
		if err := s.put(ctx, u, resolveTime, requestID, OutcomeForced); err != nil {
			return err
		}
	}
	return nil
}

func (s *PriceStore) put(ctx context.Context, u SymbolRate, resolveTime, requestID uint64, outcome Outcome) error {
	if u.Symbol == s.base {
		// Stored like any other symbol but never read back.
		s.logger.Warn("relay for base symbol is not observable",
			zap.String("symbol", string(u.Symbol)),
			zap.Uint64("request_id", requestID))
		outcome = OutcomeBaseSymbol
	}
	d := ReferenceDatum{Rate: u.Rate, ResolveTime: resolveTime, RequestID: requestID}
	if err := s.data.PutDatum(ctx, u.Symbol, d); err != nil {
		return fmt.Errorf("put datum %q: %w", u.Symbol, err)
	}
	s.recorder.RelayOutcome(u.Symbol, outcome)
	return nil
}
