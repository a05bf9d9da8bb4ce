package memory

import (
	"context"
	"errors"
	"testing"

	"findb/internal/domain"
	"findb/internal/storage"
)

func TestQuoteStore_UpsertAndGetBars(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Epoch: 300, Close: 3},
		{Symbol: "AAPL", Epoch: 100, Close: 1},
		{Symbol: "AAPL", Epoch: 200, Close: 2},
		{Symbol: "MSFT", Epoch: 100, Close: 9},
	}
	if err := store.UpsertBars(ctx, bars); err != nil {
		t.Fatalf("UpsertBars failed: %v", err)
	}
	// correction of an existing bar
	if err := store.UpsertBars(ctx, []domain.Bar{{Symbol: "AAPL", Epoch: 200, Close: 2.5}}); err != nil {
		t.Fatalf("UpsertBars failed: %v", err)
	}

	got, err := store.GetBars(ctx, "AAPL", 100, 250)
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got))
	}
	if got[0].Epoch != 100 || got[1].Epoch != 200 {
		t.Errorf("bars not ordered by epoch: %+v", got)
	}
	if got[1].Close != 2.5 {
		t.Errorf("expected corrected close 2.5, got %v", got[1].Close)
	}
}

func TestQuoteStore_EpochRange(t *testing.T) {
	store := NewQuoteStore()
	ctx := context.Background()

	if _, err := store.EpochRange(ctx, "AAPL"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	store.UpsertBars(ctx, []domain.Bar{
		{Symbol: "AAPL", Epoch: 200},
		{Symbol: "AAPL", Epoch: 50},
		{Symbol: "AAPL", Epoch: 400},
	})
	r, err := store.EpochRange(ctx, "AAPL")
	if err != nil {
		t.Fatalf("EpochRange failed: %v", err)
	}
	if r.Min != 50 || r.Max != 400 {
		t.Errorf("expected [50, 400], got [%v, %v]", r.Min, r.Max)
	}
}

func TestQuoteMetaStore_UpsertAndGet(t *testing.T) {
	store := NewQuoteMetaStore()
	ctx := context.Background()

	if _, err := store.GetMeta(ctx, "VTA"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.UpsertMeta(ctx, &domain.QuoteMeta{Symbol: "VTA", Delisted: true, TZInfo: "US/Eastern"}); err != nil {
		t.Fatalf("UpsertMeta failed: %v", err)
	}
	m, err := store.GetMeta(ctx, "VTA")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if !m.Delisted || m.MinEpoch != nil {
		t.Errorf("unexpected meta: %+v", m)
	}
}
