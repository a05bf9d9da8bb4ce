package memory

import (
	"context"
	"sort"
	"sync"

	"findb/internal/domain"
	"findb/internal/storage"
)

// CrawlStateStore is an in-memory implementation of storage.CrawlStateStore.
type CrawlStateStore struct {
	mu      sync.RWMutex
	pending *storage.CrawlProgress
	seen    map[string]bool
}

// NewCrawlStateStore creates a new in-memory crawl state store.
func NewCrawlStateStore() *CrawlStateStore {
	return &CrawlStateStore{
		seen: make(map[string]bool),
	}
}

var _ storage.CrawlStateStore = (*CrawlStateStore)(nil)

// MarkSymbolsSeen records confirmed symbols.
func (s *CrawlStateStore) MarkSymbolsSeen(_ context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sym := range symbols {
		if sym = domain.NormalizeSymbol(sym); sym != "" {
			s.seen[sym] = true
		}
	}
	return nil
}

// LoadSeenSymbols returns all confirmed symbols, sorted.
func (s *CrawlStateStore) LoadSeenSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.seen))
	for sym := range s.seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// SetPending replaces the stored untried candidates.
func (s *CrawlStateStore) SetPending(_ context.Context, progress *storage.CrawlProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &storage.CrawlProgress{
		RunID:      progress.RunID,
		Candidates: append([]string(nil), progress.Candidates...),
		UpdatedAt:  progress.UpdatedAt,
	}
	return nil
}

// GetPending returns the last stored untried candidates.
func (s *CrawlStateStore) GetPending(_ context.Context) (*storage.CrawlProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pending == nil {
		return nil, storage.ErrNotFound
	}
	return &storage.CrawlProgress{
		RunID:      s.pending.RunID,
		Candidates: append([]string(nil), s.pending.Candidates...),
		UpdatedAt:  s.pending.UpdatedAt,
	}, nil
}
