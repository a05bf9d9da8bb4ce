package memory

import (
	"context"
	"sync"

	"findb/internal/domain"
	"findb/internal/storage"
)

// QuoteMetaStore is an in-memory implementation of storage.QuoteMetaStore.
type QuoteMetaStore struct {
	mu   sync.RWMutex
	data map[string]domain.QuoteMeta
}

// NewQuoteMetaStore creates a new in-memory quote meta store.
func NewQuoteMetaStore() *QuoteMetaStore {
	return &QuoteMetaStore{data: make(map[string]domain.QuoteMeta)}
}

var _ storage.QuoteMetaStore = (*QuoteMetaStore)(nil)

// UpsertMeta inserts or replaces the meta row of a symbol.
func (s *QuoteMetaStore) UpsertMeta(_ context.Context, m *domain.QuoteMeta) error {
	if m == nil || m.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[m.Symbol] = *m
	return nil
}

// GetMeta returns the meta row of symbol.
func (s *QuoteMetaStore) GetMeta(_ context.Context, symbol string) (*domain.QuoteMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}
