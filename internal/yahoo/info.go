package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"findb/internal/domain"
)

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                    string `json:"symbol"`
	Exchange                  string `json:"exchange"`
	ShortName                 string `json:"shortName"`
	LongName                  string `json:"longName"`
	ExchangeTimezoneName      string `json:"exchangeTimezoneName"`
	ExchangeTimezoneShortName string `json:"exchangeTimezoneShortName"`
	GMTOffSetMilliseconds     int64  `json:"gmtOffSetMilliseconds"`
	Market                    string `json:"market"`
	QuoteType                 string `json:"quoteType"`
	Currency                  string `json:"currency"`
	FullExchangeName          string `json:"fullExchangeName"`
	ESGPopulated              bool   `json:"esgPopulated"`
	MessageBoardID            string `json:"messageBoardId"`
}

// ErrNoInfo is returned when the quote endpoint knows nothing about a symbol.
var ErrNoInfo = errors.New("no info available")

// Info returns the descriptive metadata of symbol.
func (c *Client) Info(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	rawURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.opts.QuoteURL, url.QueryEscape(symbol))

	// unknown symbols answer 404
	var resp quoteResponse
	if err := c.getJSON(ctx, rawURL, &resp, http.StatusNotFound); err != nil {
		return nil, fmt.Errorf("info %s: %w", symbol, err)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("info %s: %w", symbol, ErrNoInfo)
	}

	r := resp.QuoteResponse.Result[0]
	return &domain.SymbolInfo{
		// keep the requested symbol as primary key even if the provider normalizes it
		Symbol:                symbol,
		Exchange:              r.Exchange,
		ShortName:             r.ShortName,
		LongName:              r.LongName,
		ExchangeTimezone:      r.ExchangeTimezoneName,
		ExchangeTimezoneShort: r.ExchangeTimezoneShortName,
		GMTOffsetMs:           r.GMTOffSetMilliseconds,
		Market:                r.Market,
		QuoteType:             r.QuoteType,
		Currency:              r.Currency,
		FullExchangeName:      r.FullExchangeName,
		IsESGPopulated:        r.ESGPopulated,
		MessageBoard:          r.MessageBoardID,
	}, nil
}
