package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"findb/internal/domain"
	"findb/internal/storage"
)

// SymbolStore implements storage.SymbolStore on sqlite.
type SymbolStore struct {
	db *DB
}

// NewSymbolStore creates a new SymbolStore.
func NewSymbolStore(db *DB) *SymbolStore {
	return &SymbolStore{db: db}
}

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

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO yfinance_symbol (
				symbol, exchange, exchange_description, name, type, type_description, active
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert symbol: %w", err)
		}
		defer stmt.Close()

		for _, sym := range symbols {
			if _, err := stmt.ExecContext(ctx,
				sym.Symbol, sym.Exchange, nullable(sym.ExchangeDescription), nullable(sym.Name),
				sym.Type, nullable(sym.TypeDescription), sym.Active,
			); err != nil {
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
	if limit == 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, exchange, COALESCE(exchange_description, ''), COALESCE(name, ''),
		       type, COALESCE(type_description, ''), active
		FROM yfinance_symbol
		ORDER BY symbol, exchange, type
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	symbols := []domain.Symbol{}
	for rows.Next() {
		var sym domain.Symbol
		if err := rows.Scan(&sym.Symbol, &sym.Exchange, &sym.ExchangeDescription, &sym.Name,
			&sym.Type, &sym.TypeDescription, &sym.Active); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// MaxSymbolLength returns the length of the longest stored symbol.
func (s *SymbolStore) MaxSymbolLength(ctx context.Context) (int, error) {
	var length sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(LENGTH(symbol)) FROM yfinance_symbol`).Scan(&length); err != nil {
		return 0, fmt.Errorf("max symbol length: %w", err)
	}
	if !length.Valid {
		return 0, storage.ErrNotFound
	}
	return int(length.Int64), nil
}
