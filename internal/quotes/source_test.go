package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	quote "github.com/markcheno/go-quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiingoSource(t *testing.T) {
	var gotStart, gotEnd string
	src := &TiingoSource{
		Token: "secret",
		now:   func() time.Time { return time.Date(2024, 5, 2, 18, 0, 0, 0, time.UTC) },
		fetch: func(symbol, startDate, endDate string, period quote.Period, token string) (quote.Quote, error) {
			gotStart, gotEnd = startDate, endDate
			assert.Equal(t, quote.Daily, period)
			assert.Equal(t, "secret", token)
			q := quote.NewQuote(symbol, 1)
			q.Date[0] = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
			q.Open[0], q.High[0], q.Low[0], q.Close[0], q.Volume[0] = 10, 12, 9, 11, 1000
			return q, nil
		},
	}

	ny := Location("US/Eastern")
	bars, err := src.DailyBars(context.Background(), "SPY", time.Time{}, ny)
	require.NoError(t, err)
	assert.Equal(t, tiingoHistoryStart, gotStart)
	assert.Equal(t, "2024-05-02", gotEnd)

	require.Len(t, bars, 1)
	assert.Equal(t, float64(time.Date(2024, 5, 1, 0, 0, 0, 0, ny).Unix()), bars[0].Epoch)
	assert.Equal(t, 11.0, bars[0].AdjClose)
	assert.Equal(t, "US/Eastern", bars[0].TZInfo)

	_, err = src.DailyBars(context.Background(), "SPY", time.Date(2024, 4, 26, 0, 0, 0, 0, ny), ny)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-26", gotStart)
}

func TestTiingoSource_Error(t *testing.T) {
	src := &TiingoSource{
		now: time.Now,
		fetch: func(string, string, string, quote.Period, string) (quote.Quote, error) {
			return quote.NewQuote("", 0), errors.New("unauthorized")
		},
	}
	_, err := src.DailyBars(context.Background(), "SPY", time.Time{}, nil)
	assert.Error(t, err)
}
