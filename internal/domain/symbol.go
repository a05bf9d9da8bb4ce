package domain

import "strings"

// SymbolColumns is the output column order of a symbol row.
var SymbolColumns = []string{"symbol", "exchange", "exchange_description", "name", "type", "type_description", "active"}

// Symbol is a ticker confirmed by the search endpoint.
// Corresponds to the yfinance_symbol table. Empty strings stand for NULL.
type Symbol struct {
	Symbol              string // ticker as returned by the provider
	Exchange            string // exchange code, e.g. NMS
	ExchangeDescription string // e.g. NASDAQ
	Name                string // company / instrument name
	Type                string // instrument type code, e.g. S
	TypeDescription     string // e.g. Equity
	Active              int    // 1 for every freshly discovered symbol
}

// Row returns the symbol as a CSV row in SymbolColumns order.
func (s Symbol) Row() []string {
	active := "0"
	if s.Active != 0 {
		active = "1"
	}
	return []string{s.Symbol, s.Exchange, s.ExchangeDescription, s.Name, s.Type, s.TypeDescription, active}
}

// NormalizeSymbol returns the canonical (trimmed, upper-cased) form of a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
