package domain

import (
	"strconv"
	"time"
)

// QuoteColumns is the CSV column order of a downloaded quote file.
var QuoteColumns = []string{"symbol", "epoch", "tzinfo", "o", "h", "l", "c", "adj_close", "v"}

// QuoteMetaColumns is the CSV column order of a quote meta file.
var QuoteMetaColumns = []string{"symbol", "min_epoch", "max_epoch", "delisted", "tz_info"}

// Bar is one end-of-day OHLCV observation.
// Corresponds to the yfinance_quote table, keyed by (symbol, epoch).
type Bar struct {
	Symbol   string
	Epoch    float64 // seconds since epoch, exchange-local midnight
	TZInfo   string  // IANA zone of the listing exchange
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Time returns the bar timestamp in its exchange time zone (UTC if unknown).
func (b Bar) Time() time.Time {
	sec := int64(b.Epoch)
	t := time.Unix(sec, int64((b.Epoch-float64(sec))*1e9))
	if loc, err := time.LoadLocation(b.TZInfo); err == nil && b.TZInfo != "" {
		return t.In(loc)
	}
	return t.UTC()
}

// Row returns the bar as a CSV row in QuoteColumns order.
func (b Bar) Row() []string {
	return []string{
		b.Symbol, formatFloat(b.Epoch), b.TZInfo,
		formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low), formatFloat(b.Close),
		formatFloat(b.AdjClose), formatFloat(b.Volume),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// QuoteMeta summarizes the stored history of one symbol.
// Corresponds to the yfinance_quote_meta table.
type QuoteMeta struct {
	Symbol   string
	MinEpoch *float64 // nil when nothing was downloaded
	MaxEpoch *float64
	Delisted bool
	TZInfo   string
}

// Row returns the meta as a CSV row in QuoteMetaColumns order.
// Missing epochs are written as empty fields.
func (m QuoteMeta) Row() []string {
	epoch := func(e *float64) string {
		if e == nil {
			return ""
		}
		return formatFloat(*e)
	}
	delisted := "0"
	if m.Delisted {
		delisted = "1"
	}
	return []string{m.Symbol, epoch(m.MinEpoch), epoch(m.MaxEpoch), delisted, m.TZInfo}
}

// EpochRange is the stored [min, max] epoch interval of a symbol.
type EpochRange struct {
	Min float64
	Max float64
}

// SymbolZone pairs a symbol with the time zone of its exchange.
type SymbolZone struct {
	Symbol   string
	Timezone string // empty means US/Eastern
}

// DefaultTimezone is used when the exchange time zone is unknown.
const DefaultTimezone = "US/Eastern"
