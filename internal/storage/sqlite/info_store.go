package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"findb/internal/domain"
	"findb/internal/storage"
)

// InfoStore implements storage.InfoStore on sqlite.
type InfoStore struct {
	db *DB
}

// NewInfoStore creates a new InfoStore.
func NewInfoStore(db *DB) *InfoStore {
	return &InfoStore{db: db}
}

var _ storage.InfoStore = (*InfoStore)(nil)

// UpsertInfo inserts or replaces info rows atomically.
func (s *InfoStore) UpsertInfo(ctx context.Context, infos []domain.SymbolInfo) error {
	if len(infos) == 0 {
		return nil
	}
	for _, info := range infos {
		if info.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO yfinance_symbol_info (
				symbol, exchange, short_name, long_name, exchange_timezone, exchange_timezone_short,
				gmt_offset_ms, market, quote_type, currency, full_exchange_name, is_esg_populated, message_board
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert info: %w", err)
		}
		defer stmt.Close()

		for _, i := range infos {
			if _, err := stmt.ExecContext(ctx,
				i.Symbol, i.Exchange, nullable(i.ShortName), nullable(i.LongName),
				nullable(i.ExchangeTimezone), nullable(i.ExchangeTimezoneShort), i.GMTOffsetMs,
				nullable(i.Market), nullable(i.QuoteType), nullable(i.Currency),
				nullable(i.FullExchangeName), i.IsESGPopulated, nullable(i.MessageBoard),
			); err != nil {
				return fmt.Errorf("upsert info %s: %w", i.Symbol, err)
			}
		}
		return nil
	})
}

// SymbolsWithoutInfo returns distinct symbols that have no info row yet.
func (s *InfoStore) SymbolsWithoutInfo(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT s.symbol
		FROM yfinance_symbol s
		LEFT JOIN yfinance_symbol_info i ON i.symbol = s.symbol
		WHERE i.symbol IS NULL
		ORDER BY s.symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("symbols without info: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
