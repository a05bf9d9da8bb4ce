package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"findb/internal/domain"
	"findb/internal/storage"
)

// QuoteStore implements storage.QuoteStore and storage.QuoteMetaStore on sqlite.
type QuoteStore struct {
	db *DB
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(db *DB) *QuoteStore {
	return &QuoteStore{db: db}
}

var (
	_ storage.QuoteStore     = (*QuoteStore)(nil)
	_ storage.QuoteMetaStore = (*QuoteStore)(nil)
)

// UpsertBars inserts or replaces bars atomically.
func (s *QuoteStore) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO yfinance_quote (symbol, epoch, tzinfo, o, h, l, c, adj_close, v)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert bar: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, b.Symbol, b.Epoch, nullable(b.TZInfo),
				b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume); err != nil {
				return fmt.Errorf("upsert bar %s@%v: %w", b.Symbol, b.Epoch, err)
			}
		}
		return nil
	})
}

// GetBars returns bars of symbol within [from, to], ordered by epoch ASC.
func (s *QuoteStore) GetBars(ctx context.Context, symbol string, from, to float64) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, epoch, COALESCE(tzinfo, ''),
		       COALESCE(o, 0), COALESCE(h, 0), COALESCE(l, 0), COALESCE(c, 0),
		       COALESCE(adj_close, 0), COALESCE(v, 0)
		FROM yfinance_quote
		WHERE symbol = ? AND epoch >= ? AND epoch <= ?
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
	return bars, rows.Err()
}

// EpochRange returns the stored epoch interval of symbol.
func (s *QuoteStore) EpochRange(ctx context.Context, symbol string) (*domain.EpochRange, error) {
	var min, max sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(epoch), MAX(epoch) FROM yfinance_quote WHERE symbol = ?
	`, symbol).Scan(&min, &max)
	if err != nil {
		return nil, fmt.Errorf("epoch range: %w", err)
	}
	if !min.Valid || !max.Valid {
		return nil, storage.ErrNotFound
	}
	return &domain.EpochRange{Min: min.Float64, Max: max.Float64}, nil
}

// UpsertMeta inserts or replaces the meta row of a symbol.
func (s *QuoteStore) UpsertMeta(ctx context.Context, m *domain.QuoteMeta) error {
	if m == nil || m.Symbol == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO yfinance_quote_meta (symbol, min_epoch, max_epoch, delisted, tz_info)
		VALUES (?, ?, ?, ?, ?)
	`, m.Symbol, m.MinEpoch, m.MaxEpoch, m.Delisted, nullable(m.TZInfo))
	if err != nil {
		return fmt.Errorf("upsert quote meta: %w", err)
	}
	return nil
}

// GetMeta returns the meta row of symbol.
func (s *QuoteStore) GetMeta(ctx context.Context, symbol string) (*domain.QuoteMeta, error) {
	var (
		m        domain.QuoteMeta
		min, max sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, min_epoch, max_epoch, delisted, COALESCE(tz_info, '')
		FROM yfinance_quote_meta WHERE symbol = ?
	`, symbol).Scan(&m.Symbol, &min, &max, &m.Delisted, &m.TZInfo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get quote meta: %w", err)
	}
	if min.Valid {
		m.MinEpoch = &min.Float64
	}
	if max.Valid {
		m.MaxEpoch = &max.Float64
	}
	return &m, nil
}
