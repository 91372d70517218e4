// Package oracle implements the standard reference price oracle: a relayer
// gated store of the latest rate per symbol and cross-rate queries between
// any two symbols through a common base unit.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reference is the externally callable surface of one oracle instance. All
// calls run to completion under a single lock: mutations exclusively,
// queries shared.
type Reference struct {
	mu sync.RWMutex

	id       string
	access   *AccessControl
	store    *PriceStore
	clock    Clock
	replacer CodeReplacer
	logger   *zap.Logger
	recorder Recorder

	codeHash    [32]byte
	hasCodeHash bool
}

type options struct {
	id       string
	base     Symbol
	clock    Clock
	replacer CodeReplacer
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Reference.
type Option func(*options)

// WithBaseSymbol sets the reserved quote unit. Defaults to USD.
func WithBaseSymbol(s Symbol) Option {
	return func(o *options) { o.base = s }
}

// WithInstanceID sets the identifier reported by ContractID. Defaults to a
// random UUID per process.
func WithInstanceID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithClock sets the time source used for the synthetic base datum.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCodeReplacer sets the hook invoked by an authorized ReplaceCode.
func WithCodeReplacer(r CodeReplacer) Option {
	return func(o *options) { o.replacer = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder sets the activity recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// New builds a Reference over sub. When sub holds no admin yet, admin becomes
// the admin and the first relayer; otherwise the persisted state is kept.
func New(ctx context.Context, admin Identity, sub Substrate, opts ...Option) (*Reference, error) {
	o := options{
		base:     DefaultBaseSymbol,
		clock:    SystemClock,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if sub == nil {
		return nil, errors.New("oracle: nil substrate")
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	access := NewAccessControl(sub)
	cur, fresh, err := access.init(ctx, admin)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	if fresh {
		o.logger.Info("initialized oracle state", zap.String("admin", string(cur)), zap.String("instance", o.id))
	} else {
		o.logger.Info("opened existing oracle state", zap.String("admin", string(cur)), zap.String("instance", o.id))
	}

	return &Reference{
		id:       o.id,
		access:   access,
		store:    NewPriceStore(sub, o.base, o.logger, o.recorder),
		clock:    o.clock,
		replacer: o.replacer,
		logger:   o.logger,
		recorder: o.recorder,
	}, nil
}

// ContractID identifies this oracle instance.
func (r *Reference) ContractID() string { return r.id }

// BaseSymbol returns the reserved quote unit.
func (r *Reference) BaseSymbol() Symbol { return r.store.BaseSymbol() }

// CurrentAdmin returns the admin identity.
func (r *Reference) CurrentAdmin(ctx context.Context) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.access.Admin(ctx)
}

// IsRelayer reports whether id may relay.
func (r *Reference) IsRelayer(ctx context.Context, id Identity) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.access.IsRelayer(ctx, id)
}

// TransferAdmin hands the admin role to newAdmin.
func (r *Reference) TransferAdmin(ctx context.Context, caller, newAdmin Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.access.TransferAdmin(ctx, caller, newAdmin); err != nil {
		return r.denied("transfer_admin", caller, err)
	}
	r.logger.Info("admin transferred",
		zap.String("caller", string(caller)),
		zap.String("new_admin", string(newAdmin)))
	return nil
}

// GrantRelayers adds ids to the relayer set.
func (r *Reference) GrantRelayers(ctx context.Context, caller Identity, ids []Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.access.GrantRelayers(ctx, caller, ids); err != nil {
		return r.denied("grant_relayers", caller, err)
	}
	r.logger.Info("relayers granted", zap.Int("count", len(ids)))
	return nil
}

// RevokeRelayers removes ids from the relayer set.
func (r *Reference) RevokeRelayers(ctx context.Context, caller Identity, ids []Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.access.RevokeRelayers(ctx, caller, ids); err != nil {
		return r.denied("revoke_relayers", caller, err)
	}
	r.logger.Info("relayers revoked", zap.Int("count", len(ids)))
	return nil
}

// Relay stores updates that are newer than what is already known.
func (r *Reference) Relay(ctx context.Context, caller Identity, updates []SymbolRate, resolveTime, requestID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.access.authorize(ctx, caller, RoleRelayer); err != nil {
		return r.denied("relay", caller, err)
	}
	return r.store.Relay(ctx, updates, resolveTime, requestID)
}

// ForceRelay stores updates regardless of the stored resolve times.
func (r *Reference) ForceRelay(ctx context.Context, caller Identity, updates []SymbolRate, resolveTime, requestID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.access.authorize(ctx, caller, RoleRelayer); err != nil {
		return r.denied("force_relay", caller, err)
	}
	r.logger.Info("force relay",
		zap.String("caller", string(caller)),
		zap.Int("symbols", len(updates)),
		zap.Uint64("resolve_time", resolveTime),
		zap.Uint64("request_id", requestID))
	return r.store.ForceRelay(ctx, updates, resolveTime, requestID)
}

// GetReferenceData returns the rate of base in units of quote. The base leg
// is resolved first; a failure there skips the quote leg.
func (r *Reference) GetReferenceData(ctx context.Context, base, quote Symbol) (ReferencePrice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, err := r.referenceData(ctx, r.clock.Now(), SymbolPair{Base: base, Quote: quote})
	r.recorder.Query(err == nil)
	return p, err
}

// GetReferenceDataBulk answers every pair independently, in input order.
func (r *Reference) GetReferenceDataBulk(ctx context.Context, pairs []SymbolPair) []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.clock.Now()
	out := make([]Result, len(pairs))
	for i, pair := range pairs {
		p, err := r.referenceData(ctx, now, pair)
		r.recorder.Query(err == nil)
		if err != nil {
			out[i] = Result{Err: err}
			continue
		}
		out[i] = Result{Price: &p}
	}
	return out
}

func (r *Reference) referenceData(ctx context.Context, now uint64, pair SymbolPair) (ReferencePrice, error) {
	base, err := r.store.GetDatum(ctx, pair.Base, now)
	if err != nil {
		return ReferencePrice{}, err
	}
	quote, err := r.store.GetDatum(ctx, pair.Quote, now)
	if err != nil {
		return ReferencePrice{}, err
	}
	return Combine(base, quote)
}

// ReplaceCode gates the code replacement hook behind the admin role. An
// unauthorized caller or a failing hook aborts the call with a panic.
func (r *Reference) ReplaceCode(ctx context.Context, caller Identity, codeHash [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.access.authorize(ctx, caller, RoleAdmin); err != nil {
		r.denied("replace_code", caller, err)
		panic(fmt.Errorf("replace code: %w", err))
	}
	if r.replacer != nil {
		if err := r.replacer.ReplaceCode(ctx, codeHash); err != nil {
			r.logger.Error("code replacement failed", zap.Error(err))
			panic(fmt.Errorf("failed to set code hash: %w", err))
		}
	}
	r.codeHash = codeHash
	r.hasCodeHash = true
	r.logger.Info("code replaced", zap.Binary("code_hash", codeHash[:]))
}

// CodeHash returns the last code hash accepted by ReplaceCode.
func (r *Reference) CodeHash() ([32]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codeHash, r.hasCodeHash
}

func (r *Reference) denied(op string, caller Identity, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		r.recorder.Unauthorized(op)
		r.logger.Warn("unauthorized call",
			zap.String("op", op),
			zap.String("caller", string(caller)))
	}
	return err
}
