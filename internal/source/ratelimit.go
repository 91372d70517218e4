package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MinInterval wraps a source and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	S        Source
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) Fetch(ctx context.Context, symbols []string) (PriceData, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return PriceData{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	pd, err := m.S.Fetch(ctx, symbols)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return pd, err
}

// Limited gates calls to a source with a token bucket.
type Limited struct {
	S Source
	L *rate.Limiter
}

// PerMinute builds a limiter for rpm requests per minute with the given burst.
func PerMinute(rpm, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

func (l *Limited) Name() string { return l.S.Name() }

func (l *Limited) Fetch(ctx context.Context, symbols []string) (PriceData, error) {
	if l.L != nil {
		if err := l.L.Wait(ctx); err != nil {
			return PriceData{}, err
		}
	}
	return l.S.Fetch(ctx, symbols)
}

// Wrap applies the configured limit: a token bucket when rpm is set,
// otherwise a minimum interval, otherwise none.
func Wrap(s Source, rpm, burst int, minInterval time.Duration) Source {
	switch {
	case rpm > 0:
		return &Limited{S: s, L: PerMinute(rpm, burst)}
	case minInterval > 0:
		return &MinInterval{S: s, Interval: minInterval}
	default:
		return s
	}
}
