package memory

import (
	"context"
	"sort"
	"sync"

	"findb/internal/domain"
	"findb/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
type QuoteStore struct {
	mu   sync.RWMutex
	data map[string]map[float64]domain.Bar // symbol -> epoch -> bar
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{data: make(map[string]map[float64]domain.Bar)}
}

var _ storage.QuoteStore = (*QuoteStore)(nil)

// UpsertBars inserts or replaces bars keyed by (symbol, epoch).
func (s *QuoteStore) UpsertBars(_ context.Context, bars []domain.Bar) error {
	for _, b := range bars {
		if b.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		series, ok := s.data[b.Symbol]
		if !ok {
			series = make(map[float64]domain.Bar)
			s.data[b.Symbol] = series
		}
		series[b.Epoch] = b
	}
	return nil
}

// GetBars returns bars within [from, to], ordered by epoch ASC.
func (s *QuoteStore) GetBars(_ context.Context, symbol string, from, to float64) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []domain.Bar
	for epoch, b := range s.data[symbol] {
		if epoch >= from && epoch <= to {
			bars = append(bars, b)
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Epoch < bars[j].Epoch })
	return bars, nil
}

// EpochRange returns the stored epoch interval of symbol.
func (s *QuoteStore) EpochRange(_ context.Context, symbol string) (*domain.EpochRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[symbol]
	if len(series) == 0 {
		return nil, storage.ErrNotFound
	}
	first := true
	var r domain.EpochRange
	for epoch := range series {
		if first {
			r = domain.EpochRange{Min: epoch, Max: epoch}
			first = false
			continue
		}
		r.Min = min(r.Min, epoch)
		r.Max = max(r.Max, epoch)
	}
	return &r, nil
}
