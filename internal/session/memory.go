package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. It backs tests and the
// self-hosted server when no durable store is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	if rec.ConnectionToken == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ConnectionToken] = rec
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, token)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[token]
	return rec, ok, nil
}

func (m *MemoryStore) QueryByUser(_ context.Context, identity string, order Order, limit int) ([]Record, error) {
	m.mu.RLock()
	matches := make([]Record, 0)
	for _, rec := range m.records {
		if rec.UserIdentity != "" && rec.UserIdentity == identity {
			matches = append(matches, rec)
		}
	}
	m.mu.RUnlock()

	// Ties on timestamp are broken by token so results are stable.
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Timestamp != b.Timestamp {
			if order == Descending {
				return a.Timestamp > b.Timestamp
			}
			return a.Timestamp < b.Timestamp
		}
		if order == Descending {
			return a.ConnectionToken > b.ConnectionToken
		}
		return a.ConnectionToken < b.ConnectionToken
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
