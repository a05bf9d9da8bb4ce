package dolthub

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"findb/internal/domain"
	"findb/internal/storage"
)

// Quote tables on the remote database.
const (
	QuoteTable     = "yfinance_quote"
	QuoteMetaTable = "yfinance_quote_meta"
)

// EpochRange returns the stored epoch interval of symbol, ignoring symbols
// flagged as delisted. Returns storage.ErrNotFound if nothing is stored.
func (c *Client) EpochRange(ctx context.Context, symbol string) (*domain.EpochRange, error) {
	query := fmt.Sprintf(`select min(q.epoch) as min_epoch, max(q.epoch) as max_epoch
  from %s q
  left outer join %s qm on qm.symbol = q.symbol
 where q.symbol = '%s'
   and (qm.delisted = 0 or qm.delisted is null)`,
		QuoteTable, QuoteMetaTable, strings.ReplaceAll(symbol, "'", "''"))

	row, err := c.FetchFirst(ctx, query)
	if err != nil {
		return nil, err
	}
	if row == nil || row.String("max_epoch") == "" {
		return nil, storage.ErrNotFound
	}

	minEpoch, err := strconv.ParseFloat(row.String("min_epoch"), 64)
	if err != nil {
		return nil, fmt.Errorf("parse min_epoch: %w", err)
	}
	maxEpoch, err := strconv.ParseFloat(row.String("max_epoch"), 64)
	if err != nil {
		return nil, fmt.Errorf("parse max_epoch: %w", err)
	}
	return &domain.EpochRange{Min: minEpoch, Max: maxEpoch}, nil
}
