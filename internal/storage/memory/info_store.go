package memory

import (
	"context"
	"sort"
	"sync"

	"findb/internal/domain"
	"findb/internal/storage"
)

// InfoStore is an in-memory implementation of storage.InfoStore.
// It reads pending symbols from the SymbolStore it was created with.
type InfoStore struct {
	mu      sync.RWMutex
	data    map[[2]string]domain.SymbolInfo // (symbol, exchange)
	symbols storage.SymbolStore
}

// NewInfoStore creates a new in-memory info store. symbols may be nil.
func NewInfoStore(symbols storage.SymbolStore) *InfoStore {
	return &InfoStore{
		data:    make(map[[2]string]domain.SymbolInfo),
		symbols: symbols,
	}
}

var _ storage.InfoStore = (*InfoStore)(nil)

// UpsertInfo inserts or replaces info rows.
func (s *InfoStore) UpsertInfo(_ context.Context, infos []domain.SymbolInfo) error {
	for _, info := range infos {
		if info.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, info := range infos {
		s.data[[2]string{info.Symbol, info.Exchange}] = info
	}
	return nil
}

// SymbolsWithoutInfo returns distinct stored symbols lacking an info row.
func (s *InfoStore) SymbolsWithoutInfo(ctx context.Context) ([]string, error) {
	if s.symbols == nil {
		return nil, nil
	}
	all, err := s.symbols.ListSymbols(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	have := make(map[string]bool, len(s.data))
	for k := range s.data {
		have[k[0]] = true
	}
	s.mu.RUnlock()

	seen := make(map[string]bool)
	var pending []string
	for _, sym := range all {
		if have[sym.Symbol] || seen[sym.Symbol] {
			continue
		}
		seen[sym.Symbol] = true
		pending = append(pending, sym.Symbol)
	}
	sort.Strings(pending)
	return pending, nil
}
