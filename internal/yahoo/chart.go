package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"findb/internal/domain"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// DailyBars downloads end-of-day bars of symbol from start (zero time means
// the full history). Bar epochs are midnight of the trading day in tz.
// An unknown or delisted symbol yields no bars and no error.
func (c *Client) DailyBars(ctx context.Context, symbol string, start time.Time, tz *time.Location) ([]domain.Bar, error) {
	if tz == nil {
		tz = time.UTC
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	q.Set("events", "div,splits")
	if start.IsZero() {
		q.Set("range", "max")
	} else {
		q.Set("period1", fmt.Sprint(start.Unix()))
		q.Set("period2", fmt.Sprint(time.Now().Add(24*time.Hour).Unix()))
	}
	rawURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.opts.ChartURL, url.PathEscape(symbol), q.Encode())

	var resp chartResponse
	if err := c.getJSON(ctx, rawURL, &resp, http.StatusNotFound); err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil || len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	return chartBars(symbol, resp.Chart.Result[0], tz), nil
}

func chartBars(symbol string, r chartResult, tz *time.Location) []domain.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	quote := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	at := func(vals []*float64, i int) (float64, bool) {
		if i >= len(vals) || vals[i] == nil {
			return 0, false
		}
		return *vals[i], true
	}

	bars := make([]domain.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePrice, ok := at(quote.Close, i)
		if !ok {
			continue // no trading on that day
		}
		open, _ := at(quote.Open, i)
		high, _ := at(quote.High, i)
		low, _ := at(quote.Low, i)
		volume, _ := at(quote.Volume, i)
		adjClose, ok := at(adj, i)
		if !ok {
			adjClose = closePrice
		}

		day := time.Unix(ts, 0).In(tz)
		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, tz)

		bars = append(bars, domain.Bar{
			Symbol:   symbol,
			Epoch:    float64(midnight.Unix()),
			TZInfo:   tz.String(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			AdjClose: adjClose,
			Volume:   volume,
		})
	}
	return bars
}
