package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findb/internal/domain"
	"findb/internal/storage"
)

func TestSymbolStore_UpsertListAndMaxLength(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSymbolStore(pool)

	_, err := store.MaxSymbolLength(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.UpsertSymbols(ctx, []domain.Symbol{
		{Symbol: "MSFT", Exchange: "NMS", Type: "S", Name: "Microsoft", Active: 1},
		{Symbol: "AAPL", Exchange: "NMS", Type: "S", Name: "Apple", Active: 1},
	})
	require.NoError(t, err)

	// Upsert replaces the name
	err = store.UpsertSymbols(ctx, []domain.Symbol{
		{Symbol: "AAPL", Exchange: "NMS", Type: "S", Name: "Apple Inc.", Active: 1},
	})
	require.NoError(t, err)

	all, err := store.ListSymbols(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL", all[0].Symbol)
	assert.Equal(t, "Apple Inc.", all[0].Name)
	assert.Equal(t, "", all[0].ExchangeDescription)

	page, err := store.ListSymbols(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "MSFT", page[0].Symbol)

	n, err := store.MaxSymbolLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestQuoteStore_UpsertAndRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewQuoteStore(pool)

	_, err := store.EpochRange(ctx, "AAPL")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.UpsertBars(ctx, []domain.Bar{
		{Symbol: "AAPL", Epoch: 100, TZInfo: "America/New_York", Close: 1},
		{Symbol: "AAPL", Epoch: 200, TZInfo: "America/New_York", Close: 2},
	})
	require.NoError(t, err)

	err = store.UpsertBars(ctx, []domain.Bar{{Symbol: "AAPL", Epoch: 200, Close: 2.5}})
	require.NoError(t, err)

	bars, err := store.GetBars(ctx, "AAPL", 0, 150)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	bars, err = store.GetBars(ctx, "AAPL", 0, 1000)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.5, bars[1].Close)

	r, err := store.EpochRange(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, r.Min)
	assert.Equal(t, 200.0, r.Max)
}

func TestQuoteMetaStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewQuoteMetaStore(pool)

	_, err := store.GetMeta(ctx, "VTA")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.UpsertMeta(ctx, &domain.QuoteMeta{Symbol: "VTA", Delisted: true}))
	require.NoError(t, store.UpsertMeta(ctx, &domain.QuoteMeta{
		Symbol: "AAPL", MinEpoch: ptr(1.0), MaxEpoch: ptr(2.0), TZInfo: "America/New_York",
	}))

	m, err := store.GetMeta(ctx, "VTA")
	require.NoError(t, err)
	assert.True(t, m.Delisted)
	assert.Nil(t, m.MinEpoch)

	m, err = store.GetMeta(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, m.MaxEpoch)
	assert.Equal(t, 2.0, *m.MaxEpoch)
}

func TestInfoStore_SymbolsWithoutInfo(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	symbols := NewSymbolStore(pool)
	infos := NewInfoStore(pool)

	require.NoError(t, symbols.UpsertSymbols(ctx, []domain.Symbol{
		{Symbol: "AAPL", Exchange: "NMS"},
		{Symbol: "AAPL", Exchange: "GER"},
		{Symbol: "MSFT", Exchange: "NMS"},
	}))
	require.NoError(t, infos.UpsertInfo(ctx, []domain.SymbolInfo{
		{Symbol: "MSFT", Exchange: "NMS", ShortName: "Microsoft", GMTOffsetMs: -14400000},
	}))

	pending, err := infos.SymbolsWithoutInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, pending)
}

func TestCrawlStateStore_SeenAndPending(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCrawlStateStore(pool)

	_, err := store.GetPending(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.MarkSymbolsSeen(ctx, []string{"msft", "AAPL"}))
	require.NoError(t, store.MarkSymbolsSeen(ctx, []string{"AAPL"}))

	seen, err := store.LoadSeenSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, seen)

	require.NoError(t, store.SetPending(ctx, &storage.CrawlProgress{RunID: "r1", Candidates: []string{"AB"}, UpdatedAt: 1}))
	require.NoError(t, store.SetPending(ctx, &storage.CrawlProgress{RunID: "r2", Candidates: []string{"AC", "AD"}, UpdatedAt: 2}))

	p, err := store.GetPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", p.RunID)
	assert.Equal(t, []string{"AC", "AD"}, p.Candidates)
	assert.Equal(t, int64(2), p.UpdatedAt)
}
