// Package memory implements the state store in process memory. It backs the
// sql drivers and the test suites.
package memory

import (
	"context"
	"sync"

	"aclchain/internal/infra/persistence"
)

// Store holds committed state under a read-write lock.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ persistence.Store = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// GetState returns the stored bytes for each address that exists. Missing
// addresses are simply absent from the result.
func (s *Store) GetState(_ context.Context, addresses []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(addresses))
	for _, addr := range addresses {
		if data, ok := s.entries[addr]; ok {
			out[addr] = append([]byte(nil), data...)
		}
	}
	return out, nil
}

// SetState stores every entry. Callers hand over ownership of the values.
func (s *Store) SetState(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, data := range entries {
		s.entries[addr] = data
	}
	return nil
}

// ExportState returns a deep copy of the full state.
func (s *Store) ExportState(_ context.Context) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.entries))
	for addr, data := range s.entries {
		out[addr] = append([]byte(nil), data...)
	}
	return out, nil
}

// ImportState replaces the full state with a copy of entries.
func (s *Store) ImportState(_ context.Context, entries map[string][]byte) error {
	next := make(map[string][]byte, len(entries))
	for addr, data := range entries {
		next[addr] = append([]byte(nil), data...)
	}
	s.mu.Lock()
	s.entries = next
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the memory driver.
func (s *Store) Close() error { return nil }
