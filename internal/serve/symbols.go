package serve

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"

	"findb/internal/domain"
)

var errBadCursor = errors.New("invalid cursor")

// symbolJSON is the wire form of a discovered symbol.
type symbolJSON struct {
	Symbol              string `json:"symbol"`
	Exchange            string `json:"exchange"`
	ExchangeDescription string `json:"exchange_description"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	TypeDescription     string `json:"type_description"`
	Active              int    `json:"active"`
}

type symbolsPage struct {
	Symbols    []symbolJSON `json:"symbols"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// EncodeCursor returns the opaque cursor of a list offset.
func EncodeCursor(offset int) string {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(offset))
	return base58.Encode(buf)
}

// DecodeCursor is the inverse of EncodeCursor. An empty cursor is offset 0.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	buf, err := base58.Decode(cursor)
	if err != nil || len(buf) != 8 {
		return 0, fmt.Errorf("%w: %q", errBadCursor, cursor)
	}
	offset := binary.BigEndian.Uint64(buf)
	if offset > uint64(^uint(0)>>1) {
		return 0, fmt.Errorf("%w: %q", errBadCursor, cursor)
	}
	return int(offset), nil
}

func (s *Server) handleSymbols(c *gin.Context) {
	if s.symbols == nil {
		writeError(c, http.StatusNotFound, errors.New("no symbol store configured"))
		return
	}

	limit := s.pageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = min(n, s.pageSize)
	}

	offset, err := DecodeCursor(c.Query("cursor"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	// One extra row tells whether another page exists.
	rows, err := s.symbols.ListSymbols(c.Request.Context(), offset, limit+1)
	if err != nil {
		s.logger.Printf("list symbols: %v", err)
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	page := symbolsPage{Symbols: make([]symbolJSON, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = EncodeCursor(offset + limit)
	}
	for _, sym := range rows {
		page.Symbols = append(page.Symbols, toSymbolJSON(sym))
	}
	c.JSON(http.StatusOK, page)
}

func toSymbolJSON(s domain.Symbol) symbolJSON {
	return symbolJSON{
		Symbol:              s.Symbol,
		Exchange:            s.Exchange,
		ExchangeDescription: s.ExchangeDescription,
		Name:                s.Name,
		Type:                s.Type,
		TypeDescription:     s.TypeDescription,
		Active:              s.Active,
	}
}
