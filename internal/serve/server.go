// Package serve exposes stored symbols and quotes over HTTP.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"findb/internal/observability"
	"findb/internal/storage"
)

// DefaultSource is the quote source served when a request names none.
const DefaultSource = "yfinance"

const pingCount = 5

// Options configures a Server.
type Options struct {
	// Sources maps a source name (as used in /api/ohlcv?<source>=...) to its store.
	Sources  map[string]storage.QuoteStore
	Symbols  storage.SymbolStore
	PageSize int // default and maximum page of /api/symbols; default 500
	Logger   *log.Logger
}

// Server serves the findb HTTP API.
type Server struct {
	sources  map[string]storage.QuoteStore
	symbols  storage.SymbolStore
	pageSize int
	logger   *log.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	s := &Server{
		sources:  make(map[string]storage.QuoteStore, len(opts.Sources)),
		symbols:  opts.Symbols,
		pageSize: opts.PageSize,
		logger:   opts.Logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	for name, store := range opts.Sources {
		s.sources[strings.ToLower(name)] = store
	}
	if s.pageSize <= 0 {
		s.pageSize = 500
	}
	if s.logger == nil {
		s.logger = log.New(os.Stdout, "[serve] ", log.LstdFlags)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	api := router.Group("/api")
	api.GET("", s.handleBase)
	api.GET("/ping", s.handlePing)
	api.GET("/ohlcv", s.handleOHLCV)
	api.GET("/ohlcv/:source/:symbols", s.handleOHLCVSource)
	api.GET("/symbols", s.handleSymbols)
	api.GET("/ws/ohlcv", s.handleWebsocket)

	s.engine = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down within timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(c.Writer.Status()), time.Since(started).Seconds())
	}
}

func (s *Server) handleBase(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	c.String(http.StatusOK, scheme+"://"+c.Request.Host+c.Request.URL.Path)
}

// handlePing streams pingCount pong objects, one per line.
func (s *Server) handlePing(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	for i := 0; i < pingCount; i++ {
		now := float64(time.Now().UTC().UnixNano()) / 1e9
		if err := enc.Encode(gin.H{"pong": now}); err != nil {
			return
		}
		c.Writer.Flush()
	}
}
