// Package memory is an in-process oracle substrate. State is lost on exit.
package memory

import (
	"context"
	"sync"

	"stdref/internal/oracle"
)

// Store keeps admin, relayers and datums in maps.
type Store struct {
	mu       sync.RWMutex
	admin    oracle.Identity
	hasAdmin bool
	relayers map[oracle.Identity]struct{}
	data     map[oracle.Symbol]oracle.ReferenceDatum
}

var _ oracle.Substrate = (*Store)(nil)

func New() *Store {
	return &Store{
		relayers: make(map[oracle.Identity]struct{}),
		data:     make(map[oracle.Symbol]oracle.ReferenceDatum),
	}
}

func (s *Store) LoadAdmin(_ context.Context) (oracle.Identity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, s.hasAdmin, nil
}

func (s *Store) StoreAdmin(_ context.Context, id oracle.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin, s.hasAdmin = id, true
	return nil
}

func (s *Store) HasRelayer(_ context.Context, id oracle.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relayers[id]
	return ok, nil
}

func (s *Store) PutRelayer(_ context.Context, id oracle.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayers[id] = struct{}{}
	return nil
}

func (s *Store) DeleteRelayer(_ context.Context, id oracle.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relayers, id)
	return nil
}

func (s *Store) GetDatum(_ context.Context, symbol oracle.Symbol) (oracle.ReferenceDatum, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[symbol]
	return d, ok, nil
}

func (s *Store) PutDatum(_ context.Context, symbol oracle.Symbol, d oracle.ReferenceDatum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[symbol] = d
	return nil
}

// Len reports the number of stored datums.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
