package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"findb/internal/domain"
	"findb/internal/storage"
)

// SymbolStore implements storage.SymbolStore using PostgreSQL.
type SymbolStore struct {
	pool *Pool
}

// NewSymbolStore creates a new SymbolStore.
func NewSymbolStore(pool *Pool) *SymbolStore {
	return &SymbolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolStore = (*SymbolStore)(nil)

// UpsertSymbols inserts or replaces symbols atomically.
func (s *SymbolStore) UpsertSymbols(ctx context.Context, symbols []domain.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	for _, sym := range symbols {
		if sym.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO yfinance_symbol (
			symbol, exchange, exchange_description, name, type, type_description, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, exchange, type) DO UPDATE
		SET exchange_description = EXCLUDED.exchange_description,
		    name = EXCLUDED.name,
		    type_description = EXCLUDED.type_description,
		    active = EXCLUDED.active
	`

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, sym := range symbols {
			_, err := tx.Exec(ctx, query,
				sym.Symbol,
				sym.Exchange,
				nullable(sym.ExchangeDescription),
				nullable(sym.Name),
				sym.Type,
				nullable(sym.TypeDescription),
				sym.Active,
			)
			if err != nil {
				return fmt.Errorf("upsert symbol %s: %w", sym.Symbol, err)
			}
		}
		return nil
	})
}

// ListSymbols returns symbols ordered by (symbol, exchange, type). limit 0 means all.
func (s *SymbolStore) ListSymbols(ctx context.Context, offset, limit int) ([]domain.Symbol, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT symbol, exchange, COALESCE(exchange_description, ''), COALESCE(name, ''),
		       type, COALESCE(type_description, ''), active
		FROM yfinance_symbol
		ORDER BY symbol, exchange, type
		OFFSET $1
	`
	args := []any{offset}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	symbols := []domain.Symbol{}
	for rows.Next() {
		var sym domain.Symbol
		if err := rows.Scan(
			&sym.Symbol,
			&sym.Exchange,
			&sym.ExchangeDescription,
			&sym.Name,
			&sym.Type,
			&sym.TypeDescription,
			&sym.Active,
		); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

// MaxSymbolLength returns the length of the longest stored symbol.
func (s *SymbolStore) MaxSymbolLength(ctx context.Context) (int, error) {
	var length *int
	err := s.pool.QueryRow(ctx, `SELECT MAX(LENGTH(symbol)) FROM yfinance_symbol`).Scan(&length)
	if err != nil {
		return 0, fmt.Errorf("max symbol length: %w", err)
	}
	if length == nil {
		return 0, storage.ErrNotFound
	}
	return *length, nil
}
