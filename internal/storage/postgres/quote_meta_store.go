package postgres

import (
	"context"
	"fmt"

	"findb/internal/domain"
	"findb/internal/storage"
)

// QuoteMetaStore implements storage.QuoteMetaStore using PostgreSQL.
type QuoteMetaStore struct {
	pool *Pool
}

// NewQuoteMetaStore creates a new QuoteMetaStore.
func NewQuoteMetaStore(pool *Pool) *QuoteMetaStore {
	return &QuoteMetaStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QuoteMetaStore = (*QuoteMetaStore)(nil)

// UpsertMeta inserts or replaces the meta row of a symbol.
func (s *QuoteMetaStore) UpsertMeta(ctx context.Context, m *domain.QuoteMeta) error {
	if m == nil || m.Symbol == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO yfinance_quote_meta (symbol, min_epoch, max_epoch, delisted, tz_info)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE
		SET min_epoch = EXCLUDED.min_epoch,
		    max_epoch = EXCLUDED.max_epoch,
		    delisted = EXCLUDED.delisted,
		    tz_info = EXCLUDED.tz_info
	`, m.Symbol, m.MinEpoch, m.MaxEpoch, m.Delisted, nullable(m.TZInfo))
	if err != nil {
		return fmt.Errorf("upsert quote meta: %w", err)
	}
	return nil
}

// GetMeta returns the meta row of symbol.
func (s *QuoteMetaStore) GetMeta(ctx context.Context, symbol string) (*domain.QuoteMeta, error) {
	var m domain.QuoteMeta
	err := s.pool.QueryRow(ctx, `
		SELECT symbol, min_epoch, max_epoch, delisted, COALESCE(tz_info, '')
		FROM yfinance_quote_meta
		WHERE symbol = $1
	`, symbol).Scan(&m.Symbol, &m.MinEpoch, &m.MaxEpoch, &m.Delisted, &m.TZInfo)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get quote meta: %w", err)
	}
	return &m, nil
}
