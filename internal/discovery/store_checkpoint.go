package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"findb/internal/storage"
)

// StoreCheckpointer persists crawl progress in a storage.CrawlStateStore,
// so that several hosts can resume from one database instead of local files.
type StoreCheckpointer struct {
	store  storage.CrawlStateStore
	runID  string
	marked map[string]struct{}
	now    func() time.Time
}

// NewStoreCheckpointer creates a checkpointer for one crawl run.
// An empty runID is replaced by a random UUID.
func NewStoreCheckpointer(store storage.CrawlStateStore, runID string) *StoreCheckpointer {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &StoreCheckpointer{
		store:  store,
		runID:  runID,
		marked: make(map[string]struct{}),
		now:    time.Now,
	}
}

// RunID returns the identifier written with the pending candidates.
func (s *StoreCheckpointer) RunID() string {
	return s.runID
}

// SaveExisting marks the symbols not yet sent to the store as seen.
func (s *StoreCheckpointer) SaveExisting(ctx context.Context, symbols []string) error {
	var fresh []string
	for _, sym := range symbols {
		if _, ok := s.marked[sym]; !ok {
			fresh = append(fresh, sym)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := s.store.MarkSymbolsSeen(ctx, fresh); err != nil {
		return fmt.Errorf("mark symbols seen: %w", err)
	}
	for _, sym := range fresh {
		s.marked[sym] = struct{}{}
	}
	return nil
}

// SaveRemaining replaces the pending candidates of the store.
func (s *StoreCheckpointer) SaveRemaining(ctx context.Context, candidates []string) error {
	return s.store.SetPending(ctx, &storage.CrawlProgress{
		RunID:      s.runID,
		Candidates: candidates,
		UpdatedAt:  s.now().UnixMilli(),
	})
}

// Complete clears the pending candidates so a later run starts fresh.
func (s *StoreCheckpointer) Complete(ctx context.Context) error {
	return s.SaveRemaining(ctx, nil)
}

// LoadState returns the seen symbols and the pending candidates stored by a
// previous run. pending is nil if no run left candidates behind.
func LoadState(ctx context.Context, store storage.CrawlStateStore) (seen, pending []string, err error) {
	seen, err = store.LoadSeenSymbols(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load seen symbols: %w", err)
	}
	progress, err := store.GetPending(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return seen, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("load pending candidates: %w", err)
	}
	return seen, progress.Candidates, nil
}
