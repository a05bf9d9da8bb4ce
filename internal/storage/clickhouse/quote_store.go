package clickhouse

import (
	"context"
	"fmt"

	"findb/internal/domain"
	"findb/internal/storage"
)

// QuoteStore implements storage.QuoteStore using ClickHouse.
// Bars live in a ReplacingMergeTree ordered by (symbol, epoch), so the
// overlap re-downloaded on every quote run replaces older rows on merge.
// Reads use FINAL to see the replaced state.
type QuoteStore struct {
	conn *Conn
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(conn *Conn) *QuoteStore {
	return &QuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// UpsertBars appends bars in one batch.
func (s *QuoteStore) UpsertBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO yfinance_quote (
			symbol, epoch, tzinfo, o, h, l, c, adj_close, v
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, b.Epoch, b.TZInfo,
			b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBars returns bars of symbol within [from, to], ordered by epoch ASC.
func (s *QuoteStore) GetBars(ctx context.Context, symbol string, from, to float64) ([]domain.Bar, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT symbol, epoch, tzinfo, o, h, l, c, adj_close, v
		FROM yfinance_quote FINAL
		WHERE symbol = ? AND epoch >= ? AND epoch <= ?
		ORDER BY epoch ASC
	`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(
			&b.Symbol, &b.Epoch, &b.TZInfo,
			&b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume,
		); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// EpochRange returns the stored epoch interval of symbol.
func (s *QuoteStore) EpochRange(ctx context.Context, symbol string) (*domain.EpochRange, error) {
	var (
		count    uint64
		min, max float64
	)
	row := s.conn.QueryRow(ctx, `
		SELECT count(), min(epoch), max(epoch)
		FROM yfinance_quote
		WHERE symbol = ?
	`, symbol)
	if err := row.Scan(&count, &min, &max); err != nil {
		return nil, fmt.Errorf("query epoch range: %w", err)
	}
	if count == 0 {
		return nil, storage.ErrNotFound
	}
	return &domain.EpochRange{Min: min, Max: max}, nil
}
