// Package info fetches descriptive metadata for known symbols.
package info

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"findb/internal/domain"
	"findb/internal/observability"
)

// DefaultMaxErrors is the number of consecutive failures tolerated.
const DefaultMaxErrors = 50

// ErrTooManyErrors is returned when more than MaxErrors consecutive fetches fail.
var ErrTooManyErrors = errors.New("too many consecutive info errors")

// Provider returns the metadata of one symbol.
type Provider interface {
	Info(ctx context.Context, symbol string) (*domain.SymbolInfo, error)
}

// Sink receives fetched info rows.
type Sink interface {
	AppendInfo(ctx context.Context, infos []domain.SymbolInfo) error
}

// Options configures a Fetcher.
type Options struct {
	Provider  Provider
	Sink      Sink
	MaxErrors int         // 0 means DefaultMaxErrors
	EarlyExit func() bool // checked after every symbol
	Logger    *log.Logger
}

// Result summarizes a run.
type Result struct {
	Fetched int
	Errors  int
	Stopped bool // early exit fired before all symbols were handled
}

// Fetcher walks the symbols one at a time.
type Fetcher struct {
	opts   Options
	logger *log.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options) *Fetcher {
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[info] ", log.LstdFlags)
	}
	return &Fetcher{opts: opts, logger: logger}
}

// Run fetches and stores the info of every symbol. A failed symbol is
// skipped; a success resets the consecutive error count.
func (f *Fetcher) Run(ctx context.Context, symbols []string) (*Result, error) {
	res := &Result{}
	consecutive := 0

	for i, s := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		f.logger.Printf("get info for %s", s)
		err := f.fetchOne(ctx, s)
		switch {
		case err == nil:
			res.Fetched++
			consecutive = 0
			observability.RecordInfoFetch("ok")
		case ctx.Err() != nil:
			return res, ctx.Err()
		default:
			res.Errors++
			consecutive++
			observability.RecordInfoFetch("error")
			f.logger.Printf("ERROR for symbol %s, %v", s, err)
			if consecutive > f.opts.MaxErrors {
				return res, fmt.Errorf("%w (%d): %w", ErrTooManyErrors, consecutive, err)
			}
		}

		if f.opts.EarlyExit != nil && f.opts.EarlyExit() {
			res.Stopped = i < len(symbols)-1
			f.logger.Println("maximum allowed runtime reached or disk full")
			break
		}
	}
	return res, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string) error {
	info, err := f.opts.Provider.Info(ctx, symbol)
	if err != nil {
		return err
	}
	// the requested symbol stays the key even if the provider normalizes it
	info.Symbol = symbol
	if err := f.opts.Sink.AppendInfo(ctx, []domain.SymbolInfo{*info}); err != nil {
		return fmt.Errorf("save info: %w", err)
	}
	return nil
}
