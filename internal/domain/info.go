package domain

import "strconv"

// InfoColumns is the column order of a symbol info row.
var InfoColumns = []string{
	"symbol", "exchange", "short_name", "long_name", "exchange_timezone", "exchange_timezone_short",
	"gmt_offset_ms", "market", "quote_type", "currency", "full_exchange_name", "is_esg_populated", "message_board",
}

// SymbolInfo is the descriptive metadata of a ticker.
// Corresponds to the yfinance_symbol_info table keyed by (symbol, exchange).
type SymbolInfo struct {
	Symbol                string
	Exchange              string
	ShortName             string
	LongName              string
	ExchangeTimezone      string
	ExchangeTimezoneShort string
	GMTOffsetMs           int64
	Market                string
	QuoteType             string
	Currency              string
	FullExchangeName      string
	IsESGPopulated        bool
	MessageBoard          string
}

// Row returns the info as a CSV row in InfoColumns order.
func (i SymbolInfo) Row() []string {
	esg := "0"
	if i.IsESGPopulated {
		esg = "1"
	}
	return []string{
		i.Symbol, i.Exchange, i.ShortName, i.LongName, i.ExchangeTimezone, i.ExchangeTimezoneShort,
		strconv.FormatInt(i.GMTOffsetMs, 10), i.Market, i.QuoteType, i.Currency, i.FullExchangeName, esg, i.MessageBoard,
	}
}
