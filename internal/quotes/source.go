package quotes

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	quote "github.com/markcheno/go-quote"

	"findb/internal/domain"
)

// Source downloads end-of-day bars. A zero start means the full history.
// No bars and no error means the symbol is unknown or delisted.
type Source interface {
	DailyBars(ctx context.Context, symbol string, start time.Time, tz *time.Location) ([]domain.Bar, error)
}

// tiingoHistoryStart is requested when the full history is wanted.
const tiingoHistoryStart = "1970-01-01"

var quoteLogOnce sync.Once

// TiingoSource downloads adjusted daily bars from Tiingo through go-quote.
// Open, high, low and close are split and dividend adjusted, so AdjClose
// equals Close.
type TiingoSource struct {
	Token string

	fetch func(symbol, startDate, endDate string, period quote.Period, token string) (quote.Quote, error)
	now   func() time.Time
}

// NewTiingoSource creates a Tiingo source. go-quote's package logger is
// redirected to logger the first time a source is created.
func NewTiingoSource(token string, logger *log.Logger) *TiingoSource {
	if logger == nil {
		logger = log.New(os.Stdout, "[tiingo] ", log.LstdFlags)
	}
	quoteLogOnce.Do(func() { quote.Log = logger })
	return &TiingoSource{Token: token, fetch: quote.NewQuoteFromTiingo, now: time.Now}
}

// DailyBars implements Source. go-quote does not take a context; the
// request is bounded by its own client timeout.
func (s *TiingoSource) DailyBars(ctx context.Context, symbol string, start time.Time, tz *time.Location) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tz == nil {
		tz = time.UTC
	}

	startDate := tiingoHistoryStart
	if !start.IsZero() {
		startDate = start.Format("2006-01-02")
	}
	endDate := s.now().Format("2006-01-02")

	q, err := s.fetch(symbol, startDate, endDate, quote.Daily, s.Token)
	if err != nil {
		return nil, fmt.Errorf("tiingo %s: %w", symbol, err)
	}
	return barsFromQuote(symbol, q, tz), nil
}

// barsFromQuote converts go-quote columns to bars dated at midnight in tz.
func barsFromQuote(symbol string, q quote.Quote, tz *time.Location) []domain.Bar {
	bars := make([]domain.Bar, 0, len(q.Date))
	for i, d := range q.Date {
		midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, tz)
		bars = append(bars, domain.Bar{
			Symbol:   symbol,
			Epoch:    float64(midnight.Unix()),
			TZInfo:   tz.String(),
			Open:     q.Open[i],
			High:     q.High[i],
			Low:      q.Low[i],
			Close:    q.Close[i],
			AdjClose: q.Close[i],
			Volume:   q.Volume[i],
		})
	}
	return bars
}
