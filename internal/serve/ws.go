package serve

import (
	"fmt"
	"math"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"findb/internal/domain"
)

// streamRequest is the first message a websocket client sends.
type streamRequest struct {
	Source  string   `json:"source"`
	Symbols []string `json:"symbols"`
	From    *float64 `json:"from,omitempty"`
	To      *float64 `json:"to,omitempty"`
}

// barJSON is one streamed bar.
type barJSON struct {
	Symbol   string  `json:"symbol"`
	Epoch    float64 `json:"epoch"`
	TZInfo   string  `json:"tzinfo"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	AdjClose float64 `json:"adj_close"`
	Volume   float64 `json:"v"`
}

type streamDone struct {
	Done  bool   `json:"done"`
	Bars  int    `json:"bars"`
	Error string `json:"error,omitempty"`
}

// handleWebsocket streams the bars of one request, then a done message, then closes.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	var req streamRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(streamDone{Done: true, Error: err.Error()})
		return
	}

	sent, err := s.streamBars(c, conn, &req)
	done := streamDone{Done: true, Bars: sent}
	if err != nil {
		done.Error = err.Error()
	}
	if err := conn.WriteJSON(done); err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) streamBars(c *gin.Context, conn *websocket.Conn, req *streamRequest) (int, error) {
	source := strings.ToLower(req.Source)
	if source == "" {
		source = DefaultSource
	}
	store, ok := s.sources[source]
	if !ok {
		return 0, errUnknownSource
	}
	if len(req.Symbols) == 0 {
		return 0, errNoSymbols
	}

	from, to := -math.MaxFloat64, math.MaxFloat64
	if req.From != nil {
		from = *req.From
	}
	if req.To != nil {
		to = *req.To
	}

	sent := 0
	for _, symbol := range req.Symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		bars, err := store.GetBars(c.Request.Context(), symbol, from, to)
		if err != nil {
			return sent, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		for _, b := range bars {
			if err := conn.WriteJSON(toBarJSON(b)); err != nil {
				return sent, err
			}
			sent++
		}
	}
	return sent, nil
}

func toBarJSON(b domain.Bar) barJSON {
	return barJSON{
		Symbol:   b.Symbol,
		Epoch:    b.Epoch,
		TZInfo:   b.TZInfo,
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
		AdjClose: b.AdjClose,
		Volume:   b.Volume,
	}
}
