package serve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/markcheno/go-quote"

	"findb/internal/domain"
)

// Reserved query parameters of the ohlcv endpoints. Every other key names a source.
const (
	paramSeparator = "__separator"
	paramAs        = "__as"
	paramFrom      = "__from"
	paramTo        = "__to"
)

// Output formats of the ohlcv endpoints.
const (
	FormatCSV       = "csv"
	FormatJSON      = "json"
	FormatHighstock = "highstock"
	FormatAmibroker = "amibroker"
)

var (
	errUnknownSource = errors.New("unknown source")
	errBadFormat     = errors.New("unsupported output format")
	errBadBound      = errors.New("invalid time bound")
	errNoSymbols     = errors.New("no symbols requested")
)

// SeriesRequest is a set of symbols per source over an epoch interval.
type SeriesRequest struct {
	Sources map[string][]string
	From    float64
	To      float64
	Format  string
}

// ParseBound parses an epoch bound given as seconds or as a 2006-01-02 date (UTC).
func ParseBound(value string, fallback float64) (float64, error) {
	if value == "" {
		return fallback, nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadBound, value)
	}
	return float64(t.Unix()), nil
}

// parseSeriesRequest reads the reserved parameters of query.
// Source keys are left to the caller.
func parseSeriesRequest(query url.Values) (*SeriesRequest, string, error) {
	separator := query.Get(paramSeparator)
	if separator == "" {
		separator = ","
	}

	format := strings.ToLower(query.Get(paramAs))
	if format == "" {
		format = FormatCSV
	}
	switch format {
	case FormatCSV, FormatJSON, FormatHighstock, FormatAmibroker:
	default:
		return nil, "", fmt.Errorf("%w: %q", errBadFormat, format)
	}

	from, err := ParseBound(query.Get(paramFrom), -math.MaxFloat64)
	if err != nil {
		return nil, "", err
	}
	to, err := ParseBound(query.Get(paramTo), math.MaxFloat64)
	if err != nil {
		return nil, "", err
	}

	return &SeriesRequest{
		Sources: make(map[string][]string),
		From:    from,
		To:      to,
		Format:  format,
	}, separator, nil
}

func splitSymbols(value, separator string) []string {
	var out []string
	for _, s := range strings.Split(value, separator) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) handleOHLCV(c *gin.Context) {
	query := c.Request.URL.Query()
	req, separator, err := parseSeriesRequest(query)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	for key, values := range query {
		if strings.HasPrefix(key, "__") {
			continue
		}
		source := strings.ToLower(key)
		for _, v := range values {
			req.Sources[source] = append(req.Sources[source], splitSymbols(v, separator)...)
		}
	}
	s.serveSeries(c, req)
}

func (s *Server) handleOHLCVSource(c *gin.Context) {
	req, separator, err := parseSeriesRequest(c.Request.URL.Query())
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	source := strings.ToLower(c.Param("source"))
	req.Sources[source] = splitSymbols(c.Param("symbols"), separator)
	s.serveSeries(c, req)
}

func (s *Server) serveSeries(c *gin.Context, req *SeriesRequest) {
	quotes, err := s.FetchSeries(c.Request.Context(), req)
	switch {
	case errors.Is(err, errUnknownSource):
		writeError(c, http.StatusNotFound, err)
		return
	case errors.Is(err, errNoSymbols):
		writeError(c, http.StatusBadRequest, err)
		return
	case err != nil:
		s.logger.Printf("fetch ohlcv: %v", err)
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	body, contentType := EncodeQuotes(quotes, req.Format)
	c.Data(http.StatusOK, contentType, []byte(body))
}

// FetchSeries loads the requested series, ordered by source then symbol.
// Symbols without bars in the interval are omitted.
func (s *Server) FetchSeries(ctx context.Context, req *SeriesRequest) (quote.Quotes, error) {
	sources := make([]string, 0, len(req.Sources))
	total := 0
	for source, symbols := range req.Sources {
		if _, ok := s.sources[source]; !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownSource, source)
		}
		sources = append(sources, source)
		total += len(symbols)
	}
	if total == 0 {
		return nil, errNoSymbols
	}
	sort.Strings(sources)

	s.logger.Printf("fetch data for symbols: %v from: %v to: %v", req.Sources, req.From, req.To)

	quotes := make(quote.Quotes, 0, total)
	for _, source := range sources {
		store := s.sources[source]
		for _, symbol := range req.Sources[source] {
			bars, err := store.GetBars(ctx, symbol, req.From, req.To)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", source, symbol, err)
			}
			if len(bars) == 0 {
				continue
			}
			quotes = append(quotes, QuoteFromBars(symbol, bars))
		}
	}
	return quotes, nil
}

// QuoteFromBars converts stored bars to a go-quote series.
// Dates carry the exchange time zone of each bar.
func QuoteFromBars(symbol string, bars []domain.Bar) quote.Quote {
	q := quote.NewQuote(symbol, len(bars))
	for i, b := range bars {
		q.Date[i] = b.Time()
		q.Open[i] = b.Open
		q.High[i] = b.High
		q.Low[i] = b.Low
		q.Close[i] = b.Close
		q.Volume[i] = b.Volume
	}
	return q
}

// EncodeQuotes renders quotes in format and returns the body with its content type.
func EncodeQuotes(quotes quote.Quotes, format string) (string, string) {
	switch format {
	case FormatJSON:
		if quotes == nil {
			quotes = quote.Quotes{}
		}
		return quotes.JSON(false), "application/json"
	case FormatHighstock:
		return quotes.Highstock(), "application/json"
	case FormatAmibroker:
		return quotes.Amibroker(), "text/csv; charset=utf-8"
	default:
		return quotes.CSV(), "text/csv; charset=utf-8"
	}
}

func writeError(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}
