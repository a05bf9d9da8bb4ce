package yahoo

import (
	"context"
	"fmt"
	"net/url"

	"findb/internal/domain"
)

type searchResponse struct {
	Data struct {
		Items []searchItem `json:"items"`
	} `json:"data"`
}

type searchItem struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exch     string `json:"exch"`
	Type     string `json:"type"`
	ExchDisp string `json:"exchDisp"`
	TypeDisp string `json:"typeDisp"`
}

// SearchURL returns the search-assist URL for query.
func (c *Client) SearchURL(query string) string {
	return fmt.Sprintf("%s/_finance_doubledown/api/resource/searchassist;searchTerm=%s?device=console&returnMeta=true",
		c.opts.SearchURL, url.PathEscape(query))
}

// Lookup returns the symbols the search endpoint suggests for query.
// Every returned symbol is marked active.
func (c *Client) Lookup(ctx context.Context, query string) ([]domain.Symbol, error) {
	c.logger.Printf("search for %s", query)

	var resp searchResponse
	if err := c.getJSON(ctx, c.SearchURL(query), &resp); err != nil {
		return nil, fmt.Errorf("search %s: %w", query, err)
	}

	symbols := make([]domain.Symbol, 0, len(resp.Data.Items))
	for _, it := range resp.Data.Items {
		if it.Symbol == "" {
			continue
		}
		symbols = append(symbols, domain.Symbol{
			Symbol:              it.Symbol,
			Exchange:            it.Exch,
			ExchangeDescription: it.ExchDisp,
			Name:                it.Name,
			Type:                it.Type,
			TypeDescription:     it.TypeDisp,
			Active:              1,
		})
	}
	return symbols, nil
}
