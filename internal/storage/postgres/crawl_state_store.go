package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"findb/internal/domain"
	"findb/internal/storage"
)

// CrawlStateStore is a PostgreSQL implementation of storage.CrawlStateStore.
// Uses two tables:
//   - crawl_seen_symbols: set of confirmed symbols
//   - crawl_pending: single row with the untried candidates of the last run
type CrawlStateStore struct {
	pool *Pool
}

// NewCrawlStateStore creates a new PostgreSQL crawl state store.
func NewCrawlStateStore(pool *Pool) *CrawlStateStore {
	return &CrawlStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CrawlStateStore = (*CrawlStateStore)(nil)

// MarkSymbolsSeen records confirmed symbols.
func (s *CrawlStateStore) MarkSymbolsSeen(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sym := range symbols {
		if sym = domain.NormalizeSymbol(sym); sym == "" {
			continue
		}
		batch.Queue(`
			INSERT INTO crawl_seen_symbols (symbol, seen_at)
			VALUES ($1, NOW())
			ON CONFLICT (symbol) DO NOTHING
		`, sym)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("mark symbols seen: %w", err)
	}
	return nil
}

// LoadSeenSymbols returns all confirmed symbols, sorted.
func (s *CrawlStateStore) LoadSeenSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol FROM crawl_seen_symbols ORDER BY symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}

	return symbols, rows.Err()
}

// SetPending replaces the stored untried candidates.
func (s *CrawlStateStore) SetPending(ctx context.Context, progress *storage.CrawlProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	candidates := progress.Candidates
	if candidates == nil {
		candidates = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_pending (id, run_id, candidates, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET run_id = EXCLUDED.run_id,
		    candidates = EXCLUDED.candidates,
		    updated_at = EXCLUDED.updated_at
	`, progress.RunID, candidates, progress.UpdatedAt)

	return err
}

// GetPending returns the last stored untried candidates.
func (s *CrawlStateStore) GetPending(ctx context.Context) (*storage.CrawlProgress, error) {
	var progress storage.CrawlProgress
	err := s.pool.QueryRow(ctx, `
		SELECT run_id, candidates, updated_at
		FROM crawl_pending
		WHERE id = 1
	`).Scan(&progress.RunID, &progress.Candidates, &progress.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &progress, nil
}
