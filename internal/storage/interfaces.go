package storage

import (
	"context"

	"findb/internal/domain"
)

// SymbolStore provides access to the yfinance_symbol table.
type SymbolStore interface {
	// UpsertSymbols inserts or replaces symbols keyed by (symbol, exchange, type).
	UpsertSymbols(ctx context.Context, symbols []domain.Symbol) error

	// ListSymbols returns symbols ordered by symbol, paged by offset and limit.
	ListSymbols(ctx context.Context, offset, limit int) ([]domain.Symbol, error)

	// MaxSymbolLength returns the length of the longest stored symbol.
	// Returns ErrNotFound if the table is empty.
	MaxSymbolLength(ctx context.Context) (int, error)
}

// QuoteStore provides access to the yfinance_quote table.
type QuoteStore interface {
	// UpsertBars inserts or replaces bars keyed by (symbol, epoch).
	UpsertBars(ctx context.Context, bars []domain.Bar) error

	// GetBars returns bars of symbol with from <= epoch <= to, ordered by epoch ASC.
	GetBars(ctx context.Context, symbol string, from, to float64) ([]domain.Bar, error)

	// EpochRange returns the stored epoch interval of symbol.
	// Returns ErrNotFound if no bars are stored.
	EpochRange(ctx context.Context, symbol string) (*domain.EpochRange, error)
}

// QuoteMetaStore provides access to the yfinance_quote_meta table.
type QuoteMetaStore interface {
	// UpsertMeta inserts or replaces the meta row of a symbol.
	UpsertMeta(ctx context.Context, m *domain.QuoteMeta) error

	// GetMeta returns the meta row of symbol. Returns ErrNotFound if not exists.
	GetMeta(ctx context.Context, symbol string) (*domain.QuoteMeta, error)
}

// InfoStore provides access to the yfinance_symbol_info table.
type InfoStore interface {
	// UpsertInfo inserts or replaces info rows keyed by (symbol, exchange).
	UpsertInfo(ctx context.Context, infos []domain.SymbolInfo) error

	// SymbolsWithoutInfo returns distinct symbols that have no info row yet.
	SymbolsWithoutInfo(ctx context.Context) ([]string, error)
}

// CrawlProgress is the set of untried candidates left by a crawl run.
type CrawlProgress struct {
	RunID      string
	Candidates []string
	UpdatedAt  int64 // Unix milliseconds
}

// CrawlStateStore persists symbol crawler state.
// This enables resumption after restarts without repeating lookups.
type CrawlStateStore interface {
	// MarkSymbolsSeen records confirmed symbols. Already seen symbols are ignored.
	MarkSymbolsSeen(ctx context.Context, symbols []string) error

	// LoadSeenSymbols returns all confirmed symbols (for warming the dedup index).
	LoadSeenSymbols(ctx context.Context) ([]string, error)

	// SetPending replaces the stored untried candidates.
	SetPending(ctx context.Context, progress *CrawlProgress) error

	// GetPending returns the last stored untried candidates.
	// Returns ErrNotFound if no progress has been saved yet.
	GetPending(ctx context.Context) (*CrawlProgress, error)
}
