package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findb/internal/domain"
	"findb/internal/storage"
	"findb/internal/storage/memory"
)

const (
	jan2 = 1704171600.0 // 2024-01-02 00:00 America/New_York
	jan3 = 1704258000.0
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, pageSize int) *Server {
	t.Helper()
	ctx := context.Background()

	quotes := memory.NewQuoteStore()
	require.NoError(t, quotes.UpsertBars(ctx, []domain.Bar{
		{Symbol: "AAPL", Epoch: jan2, TZInfo: "America/New_York", Open: 1, High: 2, Low: 0.5, Close: 1.5, AdjClose: 1.4, Volume: 100},
		{Symbol: "AAPL", Epoch: jan3, TZInfo: "America/New_York", Open: 1.5, High: 2.5, Low: 1, Close: 2, AdjClose: 1.9, Volume: 200},
		{Symbol: "MSFT", Epoch: jan2, TZInfo: "America/New_York", Open: 10, High: 11, Low: 9, Close: 10.5, AdjClose: 10.5, Volume: 50},
	}))

	symbols := memory.NewSymbolStore()
	require.NoError(t, symbols.UpsertSymbols(ctx, []domain.Symbol{
		{Symbol: "AAPL", Exchange: "NMS", Name: "Apple Inc.", Type: "S", Active: 1},
		{Symbol: "IBM", Exchange: "NYQ", Name: "IBM", Type: "S", Active: 1},
		{Symbol: "MSFT", Exchange: "NMS", Name: "Microsoft", Type: "S", Active: 1},
	}))

	return NewServer(Options{
		Sources:  map[string]storage.QuoteStore{"yfinance": quotes},
		Symbols:  symbols,
		PageSize: pageSize,
		Logger:   log.New(io.Discard, "", 0),
	})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestBase(t *testing.T) {
	w := get(t, newTestServer(t, 10), "http://findb.local/api")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://findb.local/api", w.Body.String())
}

func TestPing(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/api/ping")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(w.Body)
	lines := 0
	for scanner.Scan() {
		var msg map[string]float64
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		assert.Greater(t, msg["pong"], 0.0)
		lines++
	}
	assert.Equal(t, pingCount, lines)
}

func TestOHLCV_CSV(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/api/ohlcv?yfinance=aapl,msft")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	want := "symbol,datetime,open,high,low,close,volume\n" +
		"AAPL,2024-01-02 00:00,1.00,2.00,0.50,1.50,100.00\n" +
		"AAPL,2024-01-03 00:00,1.50,2.50,1.00,2.00,200.00\n" +
		"MSFT,2024-01-02 00:00,10.00,11.00,9.00,10.50,50.00\n"
	assert.Equal(t, want, w.Body.String())
}

func TestOHLCV_Separator(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/api/ohlcv?yfinance=AAPL;MSFT&__separator=;&__as=amibroker")
	require.Equal(t, http.StatusOK, w.Code)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "symbol,date,time,open,high,low,close,volume", lines[0])
	assert.Equal(t, "MSFT,2024-01-02,00:00,10.00,11.00,9.00,10.50,50.00", lines[3])
}

func TestOHLCV_Bounds(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/api/ohlcv/yfinance/AAPL?__from=1704200000&__as=json")
	require.Equal(t, http.StatusOK, w.Code)

	var got []struct {
		Symbol string    `json:"symbol"`
		Close  []float64 `json:"close"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, []float64{2}, got[0].Close)
}

func TestOHLCV_DateBound(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/api/ohlcv/yfinance/AAPL?__to=2024-01-02&__as=json")
	require.Equal(t, http.StatusOK, w.Code)
	// 2024-01-02 UTC midnight precedes the New York midnight bar.
	assert.Equal(t, "[]", w.Body.String())
}

func TestOHLCV_Highstock(t *testing.T) {
	w := get(t, newTestServer(t, 10), "/api/ohlcv/yfinance/MSFT,NOPE?__as=highstock")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string][][]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Contains(t, got, "MSFT")
	assert.NotContains(t, got, "NOPE")
	assert.Equal(t, []float64{jan2 * 1000, 10, 11, 9, 10.5, 50}, got["MSFT"][0])
}

func TestOHLCV_Errors(t *testing.T) {
	s := newTestServer(t, 10)
	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"unknown source", "/api/ohlcv?nasdaq=AAPL", http.StatusNotFound},
		{"unknown source path", "/api/ohlcv/nasdaq/AAPL", http.StatusNotFound},
		{"bad format", "/api/ohlcv/yfinance/AAPL?__as=pickle", http.StatusBadRequest},
		{"bad bound", "/api/ohlcv/yfinance/AAPL?__from=yesterday", http.StatusBadRequest},
		{"no symbols", "/api/ohlcv?__as=csv", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s, tt.target)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSymbols_Pagination(t *testing.T) {
	s := newTestServer(t, 2)

	w := get(t, s, "/api/symbols")
	require.Equal(t, http.StatusOK, w.Code)
	var first symbolsPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Len(t, first.Symbols, 2)
	assert.Equal(t, "AAPL", first.Symbols[0].Symbol)
	assert.Equal(t, "IBM", first.Symbols[1].Symbol)
	require.NotEmpty(t, first.NextCursor)

	w = get(t, s, "/api/symbols?cursor="+first.NextCursor)
	require.Equal(t, http.StatusOK, w.Code)
	var second symbolsPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	require.Len(t, second.Symbols, 1)
	assert.Equal(t, "MSFT", second.Symbols[0].Symbol)
	assert.Empty(t, second.NextCursor)
}

func TestSymbols_LimitCappedByPageSize(t *testing.T) {
	w := get(t, newTestServer(t, 2), "/api/symbols?limit=100")
	require.Equal(t, http.StatusOK, w.Code)
	var page symbolsPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Symbols, 2)
}

func TestSymbols_BadInput(t *testing.T) {
	s := newTestServer(t, 2)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/symbols?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/symbols?cursor=0OIl").Code)
}

func TestCursorRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 500, 1 << 40} {
		got, err := DecodeCursor(EncodeCursor(offset))
		require.NoError(t, err)
		assert.Equal(t, offset, got)
	}
	got, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestWebsocketStream(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, 10).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/ohlcv"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(streamRequest{Symbols: []string{"aapl", "msft"}}))

	var bars []barJSON
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var done streamDone
		if json.Unmarshal(data, &done) == nil && done.Done {
			assert.Empty(t, done.Error)
			assert.Equal(t, 3, done.Bars)
			break
		}
		var b barJSON
		require.NoError(t, json.Unmarshal(data, &b))
		bars = append(bars, b)
	}

	require.Len(t, bars, 3)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, jan2, bars[0].Epoch)
	assert.Equal(t, 1.4, bars[0].AdjClose)
	assert.Equal(t, "MSFT", bars[2].Symbol)
}

func TestWebsocketUnknownSource(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, 10).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/ohlcv"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(streamRequest{Source: "nasdaq", Symbols: []string{"AAPL"}}))

	var done streamDone
	require.NoError(t, conn.ReadJSON(&done))
	assert.True(t, done.Done)
	assert.Contains(t, done.Error, "unknown source")
}
