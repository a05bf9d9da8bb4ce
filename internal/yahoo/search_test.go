package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findb/internal/domain"
)

func TestLookup(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		assert.Equal(t, "console", r.URL.Query().Get("device"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"items":[
			{"symbol":"AAPL","name":"Apple Inc.","exch":"NMS","type":"S","exchDisp":"NASDAQ","typeDisp":"Equity"},
			{"symbol":"","name":"blank"},
			{"symbol":"AAPL.MX","name":"Apple Inc.","exch":"MEX","type":"S","exchDisp":"Mexico","typeDisp":"Equity"}
		]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{}, 1)
	got, err := c.Lookup(context.Background(), "AAP")
	require.NoError(t, err)

	gotPath := <-paths
	assert.True(t, strings.HasSuffix(gotPath, "searchassist;searchTerm=AAP"), gotPath)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Symbol{
		Symbol:              "AAPL",
		Exchange:            "NMS",
		ExchangeDescription: "NASDAQ",
		Name:                "Apple Inc.",
		Type:                "S",
		TypeDescription:     "Equity",
		Active:              1,
	}, got[0])
	assert.Equal(t, "AAPL.MX", got[1].Symbol)
}

func TestLookup_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"items":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &sleepRecorder{}, 1)
	got, err := c.Lookup(context.Background(), "ZZZZZZ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchURL_EscapesQuery(t *testing.T) {
	c := NewClient(Options{SearchURL: "http://example"})
	u := c.SearchURL("A B")
	assert.Contains(t, u, "searchTerm=A%20B?")
}

func TestLookup_NotFoundIsRetriedUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, rec, 3)
	_, err := c.Lookup(context.Background(), "A")
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, errors.Is(err, ErrMaxRetriesExceeded))
	var retries *RetriesError
	require.True(t, errors.As(err, &retries))
	assert.True(t, retries.Terminal())
	assert.Equal(t, []time.Duration{5 * time.Second, 25 * time.Second}, rec.all())
}

func TestSearchURL_CaretEncoded(t *testing.T) {
	c := NewClient(Options{SearchURL: "http://example"})
	assert.Contains(t, c.SearchURL("^GSPC"), "searchTerm=%5EGSPC?")
	assert.Contains(t, c.SearchURL("ES=F"), "searchTerm=ES=F?")
	assert.Contains(t, c.SearchURL("A.B-C"), "searchTerm=A.B-C?")
}
