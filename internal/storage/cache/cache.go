package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stdref/internal/oracle"
)

// entry stores a cached datum with expiry.
type entry struct {
	expiresAt time.Time
	datum     oracle.ReferenceDatum
}

// Substrate caches datum reads from an underlying substrate for a TTL.
// Writes go through to the underlying store first and then refresh the
// cache. Concurrent misses for one symbol share a single read. Access-control
// calls are never cached.
type Substrate struct {
	oracle.Substrate
	TTL      time.Duration
	MaxItems int

	now   func() time.Time
	sf    singleflight.Group
	mu    sync.RWMutex
	items map[oracle.Symbol]entry
}

type loaded struct {
	datum oracle.ReferenceDatum
	found bool
}

var _ oracle.Substrate = (*Substrate)(nil)

// New wraps s. A non-positive ttl disables caching.
func New(s oracle.Substrate, ttl time.Duration, maxItems int) *Substrate {
	return &Substrate{
		Substrate: s,
		TTL:       ttl,
		MaxItems:  maxItems,
		now:       time.Now,
		items:     make(map[oracle.Symbol]entry),
	}
}

// GetDatum returns the cached datum when valid, else reads through.
func (c *Substrate) GetDatum(ctx context.Context, symbol oracle.Symbol) (oracle.ReferenceDatum, bool, error) {
	if c.TTL <= 0 {
		return c.Substrate.GetDatum(ctx, symbol)
	}

	now := c.now()
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.datum, true, nil
	}

	v, err, _ := c.sf.Do(string(symbol), func() (any, error) {
		d, found, err := c.Substrate.GetDatum(ctx, symbol)
		if err != nil || !found {
			return loaded{datum: d, found: found}, err
		}
		c.storeIfStale(symbol, d, c.now())
		return loaded{datum: d, found: true}, nil
	})
	if err != nil {
		return oracle.ReferenceDatum{}, false, err
	}
	l := v.(loaded)
	return l.datum, l.found, nil
}

// storeIfStale caches a loaded datum unless a write refreshed the entry
// while the load was in flight.
func (c *Substrate) storeIfStale(symbol oracle.Symbol, d oracle.ReferenceDatum, now time.Time) {
	c.mu.RLock()
	e, ok := c.items[symbol]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return
	}
	c.store(symbol, d, now)
}

// PutDatum writes through and refreshes the cached copy.
func (c *Substrate) PutDatum(ctx context.Context, symbol oracle.Symbol, d oracle.ReferenceDatum) error {
	if err := c.Substrate.PutDatum(ctx, symbol, d); err != nil {
		c.mu.Lock()
		delete(c.items, symbol)
		c.mu.Unlock()
		return err
	}
	if c.TTL > 0 {
		c.store(symbol, d, c.now())
	}
	return nil
}

// Len reports the number of cached entries, expired ones included.
func (c *Substrate) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Substrate) store(symbol oracle.Symbol, d oracle.ReferenceDatum, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[symbol] = entry{expiresAt: now.Add(c.TTL), datum: d}
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	// expired first, then arbitrary
	for k, v := range c.items {
		if len(c.items) <= c.MaxItems {
			return
		}
		if !now.Before(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			return
		}
		if k != symbol {
			delete(c.items, k)
		}
	}
}
