package memory

import (
	"context"
	"sort"
	"sync"

	"findb/internal/domain"
	"findb/internal/storage"
)

type symbolKey struct {
	symbol, exchange, typ string
}

// SymbolStore is an in-memory implementation of storage.SymbolStore.
type SymbolStore struct {
	mu   sync.RWMutex
	data map[symbolKey]domain.Symbol
}

// NewSymbolStore creates a new in-memory symbol store.
func NewSymbolStore() *SymbolStore {
	return &SymbolStore{data: make(map[symbolKey]domain.Symbol)}
}

var _ storage.SymbolStore = (*SymbolStore)(nil)

// UpsertSymbols inserts or replaces symbols.
func (s *SymbolStore) UpsertSymbols(_ context.Context, symbols []domain.Symbol) error {
	for _, sym := range symbols {
		if sym.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sym := range symbols {
		s.data[symbolKey{sym.Symbol, sym.Exchange, sym.Type}] = sym
	}
	return nil
}

// ListSymbols returns symbols ordered by (symbol, exchange, type).
func (s *SymbolStore) ListSymbols(_ context.Context, offset, limit int) ([]domain.Symbol, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	all := make([]domain.Symbol, 0, len(s.data))
	for _, sym := range s.data {
		all = append(all, sym)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Symbol != all[j].Symbol {
			return all[i].Symbol < all[j].Symbol
		}
		if all[i].Exchange != all[j].Exchange {
			return all[i].Exchange < all[j].Exchange
		}
		return all[i].Type < all[j].Type
	})

	if offset >= len(all) {
		return []domain.Symbol{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// MaxSymbolLength returns the length of the longest stored symbol.
func (s *SymbolStore) MaxSymbolLength(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return 0, storage.ErrNotFound
	}
	longest := 0
	for k := range s.data {
		longest = max(longest, len(k.symbol))
	}
	return longest, nil
}
