package dolthub

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"findb/internal/domain"
)

// Table names on the remote database.
const (
	SymbolTable         = "yfinance_symbol"
	ExchangeTZInfoTable = "tzinfo_exchange"
)

// DefaultMaxSymbolLength is assumed when the remote length is unknown.
const DefaultMaxSymbolLength = 21

// FetchSymbolsOptions configures FetchSymbols.
type FetchSymbolsOptions struct {
	Where        string // SQL filter on alias s; empty means all symbols
	WithTimezone bool   // join the exchange time zone
	PageSize     int    // default 200
	Jobs         int    // pages fetched concurrently; default 1
	MaxBatches   int    // 0 means unlimited
}

// SymbolsQuery returns the paginated-ready symbol query for opts.
func SymbolsQuery(opts FetchSymbolsOptions) string {
	where := opts.Where
	if where == "" {
		where = "1=1"
	}
	if opts.WithTimezone {
		return fmt.Sprintf("select s.symbol, tz.timezone from %s s left outer join %s tz on tz.symbol = s.exchange where %s order by s.symbol",
			SymbolTable, ExchangeTZInfoTable, where)
	}
	return fmt.Sprintf("select s.symbol from %s s where %s order by s.symbol", SymbolTable, where)
}

// FetchSymbols pages through the remote symbol table. Each batch requests
// Jobs pages concurrently; the first short page ends the scan. With one job
// no page past the end is requested.
func (c *Client) FetchSymbols(ctx context.Context, opts FetchSymbolsOptions) ([]domain.SymbolZone, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}
	query := SymbolsQuery(opts)

	var symbols []domain.SymbolZone
	for batch := 0; opts.MaxBatches <= 0 || batch < opts.MaxBatches; batch++ {
		pages := make([][]Row, opts.Jobs)
		base := batch * opts.Jobs * opts.PageSize
		c.logger.Printf("submit batch %d of batch size %d", batch, opts.PageSize)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Jobs)
		for p := 0; p < opts.Jobs; p++ {
			offset := base + p*opts.PageSize
			g.Go(func() error {
				rows, err := c.FetchRows(gctx, query, offset, opts.PageSize)
				if err != nil {
					return fmt.Errorf("fetch page at %d: %w", offset, err)
				}
				pages[p] = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, rows := range pages {
			for _, r := range rows {
				symbols = append(symbols, domain.SymbolZone{Symbol: r.String("symbol"), Timezone: r.String("timezone")})
			}
			if len(rows) < opts.PageSize {
				return symbols, nil
			}
		}
	}
	return symbols, nil
}

// MaxSymbolLength returns the longest remote symbol, or DefaultMaxSymbolLength
// when the table is empty.
func (c *Client) MaxSymbolLength(ctx context.Context) (int, error) {
	row, err := c.FetchFirst(ctx, fmt.Sprintf("select max(length(symbol)) as length from %s", SymbolTable))
	if err != nil {
		return DefaultMaxSymbolLength, err
	}
	if row == nil || row.String("length") == "" {
		return DefaultMaxSymbolLength, nil
	}
	n, err := strconv.Atoi(row.String("length"))
	if err != nil {
		return DefaultMaxSymbolLength, fmt.Errorf("parse length %q: %w", row.String("length"), err)
	}
	return n, nil
}

// InfoTable is the remote symbol info table.
const InfoTable = "yfinance_symbol_info"

// SymbolsWithoutInfo returns the distinct symbols that have no info row,
// paging sequentially until a short page.
func (c *Client) SymbolsWithoutInfo(ctx context.Context) ([]string, error) {
	const pageSize = 200
	query := fmt.Sprintf("select distinct s.symbol from %s s where not exists (select 1 from %s i where i.symbol = s.symbol) order by s.symbol",
		SymbolTable, InfoTable)

	var symbols []string
	for offset := 0; ; offset += pageSize {
		rows, err := c.FetchRows(ctx, query, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			symbols = append(symbols, r.String("symbol"))
		}
		if len(rows) < pageSize {
			return symbols, nil
		}
	}
}
