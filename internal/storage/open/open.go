// Package open selects a storage backend from a DSN.
package open

import (
	"context"
	"fmt"
	"net/url"

	"findb/internal/storage"
	chstore "findb/internal/storage/clickhouse"
	"findb/internal/storage/memory"
	"findb/internal/storage/migrations"
	pgstore "findb/internal/storage/postgres"
	"findb/internal/storage/sqlite"
)

// Stores holds the stores a backend provides. A nil field means the backend
// does not serve that table.
type Stores struct {
	Backend    string
	Symbols    storage.SymbolStore
	Quotes     storage.QuoteStore
	QuoteMeta  storage.QuoteMetaStore
	Info       storage.InfoStore
	CrawlState storage.CrawlStateStore

	// SqlitePath is set for the sqlite backend.
	SqlitePath string

	close func() error
}

// Close releases the backend connection.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Need returns storage.ErrUnsupported naming what if store is nil.
func Need[T any](store T, backend, what string) (T, error) {
	if any(store) == nil {
		return store, fmt.Errorf("%w: %s backend has no %s store", storage.ErrUnsupported, backend, what)
	}
	return store, nil
}

// DSN opens the backend named by the scheme of dsn and applies its migrations.
//
//	memory://                 all stores, process lifetime
//	postgres://, postgresql:// all stores (Postgres or Doltgres)
//	clickhouse://             quote bars only
//	sqlite:///path            symbols, info, quotes and quote meta
func DSN(ctx context.Context, dsn string) (*Stores, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	switch u.Scheme {
	case "memory":
		symbols := memory.NewSymbolStore()
		return &Stores{
			Backend:    "memory",
			Symbols:    symbols,
			Quotes:     memory.NewQuoteStore(),
			QuoteMeta:  memory.NewQuoteMetaStore(),
			Info:       memory.NewInfoStore(symbols),
			CrawlState: memory.NewCrawlStateStore(),
		}, nil

	case "postgres", "postgresql":
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return &Stores{
			Backend:    "postgres",
			Symbols:    pgstore.NewSymbolStore(pool),
			Quotes:     pgstore.NewQuoteStore(pool),
			QuoteMeta:  pgstore.NewQuoteMetaStore(pool),
			Info:       pgstore.NewInfoStore(pool),
			CrawlState: pgstore.NewCrawlStateStore(pool),
			close:      func() error { pool.Close(); return nil },
		}, nil

	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return &Stores{
			Backend: "clickhouse",
			Quotes:  chstore.NewQuoteStore(conn),
			close:   conn.Close,
		}, nil

	case "sqlite":
		path, err := sqlite.PathFromURI(dsn)
		if err != nil {
			return nil, err
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunSqliteMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		quotes := sqlite.NewQuoteStore(db)
		return &Stores{
			Backend:    "sqlite",
			Symbols:    sqlite.NewSymbolStore(db),
			Quotes:     quotes,
			QuoteMeta:  quotes,
			Info:       sqlite.NewInfoStore(db),
			SqlitePath: path,
			close:      db.Close,
		}, nil
	}

	return nil, fmt.Errorf("%w: dsn scheme %q", storage.ErrUnsupported, u.Scheme)
}
