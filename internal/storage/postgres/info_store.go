package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"findb/internal/domain"
	"findb/internal/storage"
)

// InfoStore implements storage.InfoStore using PostgreSQL.
type InfoStore struct {
	pool *Pool
}

// NewInfoStore creates a new InfoStore.
func NewInfoStore(pool *Pool) *InfoStore {
	return &InfoStore{pool: pool}
}

// Compile-time interface check.
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

	query := `
		INSERT INTO yfinance_symbol_info (
			symbol, exchange, short_name, long_name, exchange_timezone, exchange_timezone_short,
			gmt_offset_ms, market, quote_type, currency, full_exchange_name, is_esg_populated, message_board
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (symbol, exchange) DO UPDATE
		SET short_name = EXCLUDED.short_name,
		    long_name = EXCLUDED.long_name,
		    exchange_timezone = EXCLUDED.exchange_timezone,
		    exchange_timezone_short = EXCLUDED.exchange_timezone_short,
		    gmt_offset_ms = EXCLUDED.gmt_offset_ms,
		    market = EXCLUDED.market,
		    quote_type = EXCLUDED.quote_type,
		    currency = EXCLUDED.currency,
		    full_exchange_name = EXCLUDED.full_exchange_name,
		    is_esg_populated = EXCLUDED.is_esg_populated,
		    message_board = EXCLUDED.message_board
	`

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, i := range infos {
			_, err := tx.Exec(ctx, query,
				i.Symbol, i.Exchange,
				nullable(i.ShortName), nullable(i.LongName),
				nullable(i.ExchangeTimezone), nullable(i.ExchangeTimezoneShort),
				i.GMTOffsetMs,
				nullable(i.Market), nullable(i.QuoteType), nullable(i.Currency),
				nullable(i.FullExchangeName), i.IsESGPopulated, nullable(i.MessageBoard),
			)
			if err != nil {
				return fmt.Errorf("upsert info %s: %w", i.Symbol, err)
			}
		}
		return nil
	})
}

// SymbolsWithoutInfo returns distinct symbols that have no info row yet.
func (s *InfoStore) SymbolsWithoutInfo(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
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
