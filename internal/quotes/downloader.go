// Package quotes downloads end-of-day quotes for many symbols in parallel.
package quotes

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"findb/internal/domain"
	"findb/internal/observability"
	"findb/internal/storage"
)

// Table names the files are imported into.
const (
	QuoteTable     = "yfinance_quote"
	QuoteMetaTable = "yfinance_quote_meta"
)

// Defaults.
const (
	DefaultParallel    = 10
	DefaultOverlapDays = 5
	MetaSuffix         = ".meta.csv"
)

// RangeLookup returns the stored epoch interval of a symbol.
// storage.ErrNotFound (or a nil range) means nothing is stored yet.
type RangeLookup interface {
	EpochRange(ctx context.Context, symbol string) (*domain.EpochRange, error)
}

// Importer loads a CSV file into a table.
type Importer interface {
	TableImport(ctx context.Context, table, csvFile string) error
}

// Options configures a Downloader.
type Options struct {
	Source     Source
	SourceName string // metrics label; default "yahoo"
	OutputDir  string // default "."
	Parallel   int    // default DefaultParallel
	// OverlapDays re-downloads the last days before the stored maximum.
	OverlapDays int

	// Ranges decides where an incremental download starts.
	Ranges RangeLookup
	// Store and Meta receive the downloaded bars if set.
	Store storage.QuoteStore
	Meta  storage.QuoteMetaStore
	// Importer loads both files into dolt if set; Clean removes them afterwards.
	Importer Importer
	Clean    bool

	Limiter   *rate.Limiter
	EarlyExit func() bool
	Logger    *log.Logger
}

// Result summarizes a download run.
type Result struct {
	Downloaded int
	Delisted   int
	Skipped    int
	Failed     int
	Bars       int
}

// Downloader fetches quotes for a list of symbols with a bounded worker pool.
type Downloader struct {
	opts   Options
	logger *log.Logger

	mu  sync.Mutex
	res Result
}

// NewDownloader creates a downloader.
func NewDownloader(opts Options) *Downloader {
	if opts.SourceName == "" {
		opts.SourceName = "yahoo"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	if opts.OverlapDays <= 0 {
		opts.OverlapDays = DefaultOverlapDays
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[quotes] ", log.LstdFlags)
	}
	return &Downloader{opts: opts, logger: logger}
}

// Run downloads every target. Per-symbol failures are logged and counted;
// only cancellation aborts the run.
func (d *Downloader) Run(ctx context.Context, targets []domain.SymbolZone) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Parallel)

	for _, target := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			status, bars, err := d.fetch(gctx, target)
			d.record(status, bars)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.logger.Printf("ERROR for symbol: %s, %v", target.Symbol, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	d.mu.Lock()
	res := d.res
	d.mu.Unlock()
	return &res, err
}

func (d *Downloader) record(status string, bars int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch status {
	case "ok":
		d.res.Downloaded++
	case "delisted":
		d.res.Delisted++
	case "skipped":
		d.res.Skipped++
	default:
		d.res.Failed++
	}
	d.res.Bars += bars
}

// Location returns the zone named tz, US/Eastern if empty or unknown.
func Location(tz string) *time.Location {
	if tz == "" {
		tz = domain.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, err = time.LoadLocation(domain.DefaultTimezone)
		if err != nil {
			return time.UTC
		}
	}
	return loc
}

// CSVPath returns the quote file of symbol in dir.
func CSVPath(dir, symbol string) string {
	return filepath.Join(dir, symbol+".csv")
}

func (d *Downloader) fetch(ctx context.Context, target domain.SymbolZone) (status string, n int, err error) {
	symbol := target.Symbol
	if d.opts.EarlyExit != nil && d.opts.EarlyExit() {
		d.logger.Printf("max time reached exit before fetching %s", symbol)
		return "skipped", 0, nil
	}

	started := time.Now()
	defer func() {
		observability.RecordQuoteDownload(d.opts.SourceName, status, n, time.Since(started).Seconds())
	}()

	tz := Location(target.Timezone)
	stored, err := d.storedRange(ctx, symbol)
	if err != nil {
		return "error", 0, err
	}

	var start time.Time
	if stored == nil {
		d.logger.Printf("%s: no last price date available, fetch max history", symbol)
	} else {
		last := time.Unix(int64(stored.Max), 0).In(tz)
		start = time.Date(last.Year(), last.Month(), last.Day()-d.opts.OverlapDays, 0, 0, 0, 0, tz)
		d.logger.Printf("%s: fetch for new prices from %s", symbol, last.Format("2006-01-02"))
	}

	if d.opts.Limiter != nil {
		if err := d.opts.Limiter.Wait(ctx); err != nil {
			return "error", 0, err
		}
	}

	bars, err := d.opts.Source.DailyBars(ctx, symbol, start, tz)
	if err != nil {
		return "error", 0, err
	}

	abs, err := filepath.Abs(d.opts.OutputDir)
	if err != nil {
		return "error", 0, fmt.Errorf("resolve output dir: %w", err)
	}
	csvFile := CSVPath(abs, symbol)
	meta := &domain.QuoteMeta{Symbol: symbol, TZInfo: tz.String()}

	if len(bars) > 0 {
		d.logger.Printf("save csv for %s containing %d rows to %s", symbol, len(bars), csvFile)
		rows := make([][]string, len(bars))
		minEpoch, maxEpoch := bars[0].Epoch, bars[0].Epoch
		for i, b := range bars {
			rows[i] = b.Row()
			minEpoch = min(minEpoch, b.Epoch)
			maxEpoch = max(maxEpoch, b.Epoch)
		}
		if err := writeCSV(csvFile, domain.QuoteColumns, rows); err != nil {
			return "error", 0, err
		}
		if stored != nil {
			minEpoch = stored.Min
		}
		meta.MinEpoch, meta.MaxEpoch = &minEpoch, &maxEpoch
		status = "ok"
	} else {
		d.logger.Printf("%s no data found, might be delisted", symbol)
		meta.Delisted = true
		status = "delisted"
	}

	metaFile := csvFile + MetaSuffix
	if err := writeCSV(metaFile, domain.QuoteMetaColumns, [][]string{meta.Row()}); err != nil {
		return "error", 0, err
	}

	if err := d.persist(ctx, bars, meta); err != nil {
		return "error", 0, err
	}
	if err := d.load(ctx, csvFile, metaFile, len(bars) > 0); err != nil {
		return "error", 0, err
	}
	return status, len(bars), nil
}

func (d *Downloader) storedRange(ctx context.Context, symbol string) (*domain.EpochRange, error) {
	if d.opts.Ranges == nil {
		return nil, nil
	}
	r, err := d.opts.Ranges.EpochRange(ctx, symbol)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("epoch range %s: %w", symbol, err)
	}
	return r, nil
}

func (d *Downloader) persist(ctx context.Context, bars []domain.Bar, meta *domain.QuoteMeta) error {
	if d.opts.Store != nil && len(bars) > 0 {
		if err := d.opts.Store.UpsertBars(ctx, bars); err != nil {
			return fmt.Errorf("store bars: %w", err)
		}
	}
	if d.opts.Meta != nil {
		if err := d.opts.Meta.UpsertMeta(ctx, meta); err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	}
	return nil
}

func (d *Downloader) load(ctx context.Context, csvFile, metaFile string, hasBars bool) error {
	if d.opts.Importer == nil {
		return nil
	}
	if hasBars {
		if err := d.opts.Importer.TableImport(ctx, QuoteTable, csvFile); err != nil {
			return fmt.Errorf("load %s failed: %w", csvFile, err)
		}
	}
	if err := d.opts.Importer.TableImport(ctx, QuoteMetaTable, metaFile); err != nil {
		return fmt.Errorf("load %s failed: %w", metaFile, err)
	}

	if d.opts.Clean {
		for _, f := range []string{csvFile, metaFile} {
			if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
				d.logger.Printf("error unlinking file: %s %v", f, err)
			}
		}
	}
	return nil
}

// writeCSV replaces path with header and rows.
func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
