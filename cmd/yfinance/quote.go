package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"findb/internal/discovery"
	"findb/internal/domain"
	"findb/internal/dolthub"
	"findb/internal/quotes"
	"findb/internal/storage/open"
	"findb/internal/yahoo"
)

type quoteFlags struct {
	minutes      int
	repoDatabase string
	where        string
	symbols      string
	outputDir    string
	parallel     int
	doltLoad     bool
	clean        bool
	database     string
	source       string
	tiingoToken  string
	rate         float64
}

var quoteOpts quoteFlags

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Download end of day quotes",
	Long: `Download daily bars for the selected symbols into <output-dir>/<SYMBOL>.csv
and <SYMBOL>.csv.meta.csv. Symbols come from a file or from the DoltHub symbol
table filtered by --where. Stored history is extended incrementally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob("quote", func(ctx context.Context, logger *log.Logger) error {
			return runQuote(ctx, logger, quoteOpts)
		})
	},
}

func init() {
	f := quoteCmd.Flags()
	f.IntVarP(&quoteOpts.minutes, "time", "t", -1, "Maximum runtime in minutes (negative runs until done)")
	f.StringVarP(&quoteOpts.repoDatabase, "repo-database", "d", defaultRepoDatabase, "DoltHub repository and database name (None disables)")
	f.StringVarP(&quoteOpts.where, "where", "w", "", `A "where" constraint for the selection of symbols from the database`)
	f.StringVarP(&quoteOpts.symbols, "symbols", "s", "", "A file of symbols (one per line) to fetch prices")
	f.StringVarP(&quoteOpts.outputDir, "output-dir", "o", ".", "Path to store downloaded csv files")
	f.IntVarP(&quoteOpts.parallel, "parallel-threads", "p", quotes.DefaultParallel, "Number of parallel downloads")
	f.BoolVar(&quoteOpts.doltLoad, "dolt-load", false, "Load files into the local dolt database branch")
	f.BoolVar(&quoteOpts.clean, "clean", false, "Delete intermediary files directly after load (only with --dolt-load)")
	f.StringVar(&quoteOpts.database, "database", "", "Store DSN receiving the bars, e.g. "+defaultDSN)
	f.StringVar(&quoteOpts.source, "source", "yahoo", "Quote provider: yahoo or tiingo")
	f.StringVar(&quoteOpts.tiingoToken, "tiingo-token", os.Getenv("TIINGO_API_TOKEN"), "Tiingo API token")
	f.Float64Var(&quoteOpts.rate, "rate", 0, "Maximum provider requests per second (0 disables)")

	rootCmd.AddCommand(quoteCmd)
}

func runQuote(ctx context.Context, logger *log.Logger, opts quoteFlags) error {
	var hub *dolthub.Client
	if hasRepo(opts.repoDatabase) {
		hub = newDoltHub(opts.repoDatabase, logger)
	}
	if opts.symbols == "" && (opts.where == "" || hub == nil) {
		return errors.New("either --where (and --repo-database) or --symbols has to be provided")
	}
	if opts.clean && !opts.doltLoad {
		return errors.New("--clean only works together with --dolt-load")
	}

	outputDir, err := filepath.Abs(opts.outputDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	b, err := newBudget(opts.minutes, logger, outputDir)
	if err != nil {
		return err
	}

	targets, err := selectTickers(ctx, hub, opts, logger)
	if err != nil {
		return err
	}

	source, err := quoteSource(opts, logger)
	if err != nil {
		return err
	}

	dopts := quotes.Options{
		Source:     source,
		SourceName: opts.source,
		OutputDir:  outputDir,
		Parallel:   opts.parallel,
		EarlyExit:  b.Exhausted,
		Clean:      opts.clean,
		Logger:     logger,
	}
	if hub != nil {
		dopts.Ranges = hub
	}
	if opts.rate > 0 {
		dopts.Limiter = rate.NewLimiter(rate.Limit(opts.rate), 1)
	}
	if opts.doltLoad {
		dopts.Importer = newLocalRepo(logger)
	}
	if opts.database != "" {
		stores, err := open.DSN(ctx, opts.database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer stores.Close()

		if dopts.Store, err = open.Need(stores.Quotes, stores.Backend, "quote"); err != nil {
			return err
		}
		dopts.Meta = stores.QuoteMeta
		if dopts.Ranges == nil {
			dopts.Ranges = dopts.Store
		}
	}

	res, err := quotes.NewDownloader(dopts).Run(ctx, targets)
	if res != nil {
		logger.Printf("downloaded: %d delisted: %d skipped: %d failed: %d bars: %d",
			res.Downloaded, res.Delisted, res.Skipped, res.Failed, res.Bars)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func selectTickers(ctx context.Context, hub *dolthub.Client, opts quoteFlags, logger *log.Logger) ([]domain.SymbolZone, error) {
	if opts.symbols != "" {
		symbols, err := discovery.LoadSymbols(opts.symbols)
		if err != nil {
			return nil, fmt.Errorf("load symbols: %w", err)
		}
		targets := make([]domain.SymbolZone, len(symbols))
		for i, s := range symbols {
			targets[i] = domain.SymbolZone{Symbol: s}
		}
		return targets, nil
	}

	logger.Printf("select symbols where %s", opts.where)
	targets, err := hub.FetchSymbols(ctx, dolthub.FetchSymbolsOptions{
		Where:        opts.where,
		WithTimezone: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch symbols: %w", err)
	}
	logger.Printf("fetched %d symbols from database", len(targets))
	return targets, nil
}

func quoteSource(opts quoteFlags, logger *log.Logger) (quotes.Source, error) {
	switch opts.source {
	case "yahoo":
		return yahoo.NewClient(yahoo.Options{Logger: logger}), nil
	case "tiingo":
		if opts.tiingoToken == "" {
			return nil, errors.New("--tiingo-token (or TIINGO_API_TOKEN) is required for the tiingo source")
		}
		return quotes.NewTiingoSource(opts.tiingoToken, logger), nil
	}
	return nil, fmt.Errorf("unknown quote source %q", opts.source)
}
