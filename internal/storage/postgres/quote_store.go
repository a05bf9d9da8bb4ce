package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"findb/internal/domain"
	"findb/internal/storage"
)

// QuoteStore implements storage.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *Pool
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(pool *Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// UpsertBars inserts or replaces bars in one pgx batch inside a transaction.
func (s *QuoteStore) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO yfinance_quote (symbol, epoch, tzinfo, o, h, l, c, adj_close, v)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, epoch) DO UPDATE
		SET tzinfo = EXCLUDED.tzinfo,
		    o = EXCLUDED.o, h = EXCLUDED.h, l = EXCLUDED.l, c = EXCLUDED.c,
		    adj_close = EXCLUDED.adj_close, v = EXCLUDED.v
	`

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(query, b.Symbol, b.Epoch, nullable(b.TZInfo),
				b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert bars: %w", err)
		}
		return nil
	})
}

// GetBars returns bars of symbol within [from, to], ordered by epoch ASC.
func (s *QuoteStore) GetBars(ctx context.Context, symbol string, from, to float64) ([]domain.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, epoch, COALESCE(tzinfo, ''),
		       COALESCE(o, 0), COALESCE(h, 0), COALESCE(l, 0), COALESCE(c, 0),
		       COALESCE(adj_close, 0), COALESCE(v, 0)
		FROM yfinance_quote
		WHERE symbol = $1 AND epoch >= $2 AND epoch <= $3
		ORDER BY epoch ASC
	`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Symbol, &b.Epoch, &b.TZInfo,
			&b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}

// EpochRange returns the stored epoch interval of symbol.
func (s *QuoteStore) EpochRange(ctx context.Context, symbol string) (*domain.EpochRange, error) {
	var min, max *float64
	err := s.pool.QueryRow(ctx, `
		SELECT MIN(epoch), MAX(epoch) FROM yfinance_quote WHERE symbol = $1
	`, symbol).Scan(&min, &max)
	if err != nil {
		return nil, fmt.Errorf("epoch range: %w", err)
	}
	if min == nil || max == nil {
		return nil, storage.ErrNotFound
	}
	return &domain.EpochRange{Min: *min, Max: *max}, nil
}
