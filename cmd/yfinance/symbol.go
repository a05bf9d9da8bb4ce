package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"findb/internal/discovery"
	"findb/internal/dolthub"
	"findb/internal/sink"
	"findb/internal/storage/open"
	"findb/internal/yahoo"
)

type symbolFlags struct {
	minutes            int
	resume             string
	output             string
	repoDatabase       string
	database           string
	stateDSN           string
	knownSymbols       string
	fetchKnownOnly     bool
	noEase             bool
	torSocksPort       int
	torControlPort     int
	torControlPassword string
	retries            int
	doltLoad           bool
}

var symbolOpts symbolFlags

var symbolCmd = &cobra.Command{
	Use:   "symbol",
	Short: "Discover ticker symbols by brute-force search",
	Long: `Search Yahoo Finance for every prefix of the symbol space and append
newly found symbols to the output file. Unresolved candidates are written to
<output>.possible.symbols on exit and can be passed back with --resume.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob("symbol", func(ctx context.Context, logger *log.Logger) error {
			return runSymbol(ctx, logger, symbolOpts)
		})
	},
}

func init() {
	f := symbolCmd.Flags()
	f.IntVarP(&symbolOpts.minutes, "time", "t", -1, "Maximum runtime in minutes (negative runs until done)")
	f.StringVarP(&symbolOpts.resume, "resume", "r", "", "Symbols file to resume from a left session")
	f.StringVarP(&symbolOpts.output, "output", "o", "yfsymbols.csv", "Filename holding the results, appends if exists")
	f.StringVar(&symbolOpts.repoDatabase, "repo-database", defaultRepoDatabase, "DoltHub repository holding the known symbols (None disables)")
	f.StringVarP(&symbolOpts.database, "database", "d", "", "Store DSN receiving discovered symbols, e.g. "+defaultDSN)
	f.StringVar(&symbolOpts.stateDSN, "state-dsn", os.Getenv("FINDB_STATE_DSN"), "Store DSN persisting crawl state across hosts")
	f.StringVarP(&symbolOpts.knownSymbols, "known-symbols", "s", "", "Known symbols file instead of fetching them (one symbol per line)")
	f.BoolVar(&symbolOpts.fetchKnownOnly, "fetch-known-symbols-only", false, "Only save the known symbols")
	f.BoolVar(&symbolOpts.noEase, "no-ease", false, "Don't sleep between search calls")
	f.IntVar(&symbolOpts.torSocksPort, "tor-socks-port", 0, "Tor socks port to access Yahoo via Tor")
	f.IntVar(&symbolOpts.torControlPort, "tor-control-port", 0, "Tor control port to reset the exit IP")
	f.StringVar(&symbolOpts.torControlPassword, "tor-control-password", "password", "Tor control password")
	f.IntVar(&symbolOpts.retries, "retries", yahoo.DefaultRetries, "Maximum number of attempts per search")
	f.BoolVar(&symbolOpts.doltLoad, "dolt-load", false, "Import the output file into the local dolt repository when done")

	rootCmd.AddCommand(symbolCmd)
}

func runSymbol(ctx context.Context, logger *log.Logger, opts symbolFlags) error {
	output, err := filepath.Abs(opts.output)
	if err != nil {
		return err
	}

	b, err := newBudget(opts.minutes, logger, filepath.Dir(output))
	if err != nil {
		return err
	}
	logger.Printf("write results to %s run until: %v", output, b.Deadline)

	var hub *dolthub.Client
	if hasRepo(opts.repoDatabase) {
		hub = newDoltHub(opts.repoDatabase, logger)
	}

	maxLen := dolthub.DefaultMaxSymbolLength
	if hub != nil {
		if maxLen, err = hub.MaxSymbolLength(ctx); err != nil {
			return fmt.Errorf("max symbol length: %w", err)
		}
	}

	existing, err := knownSymbols(ctx, opts.knownSymbols, hub)
	if err != nil {
		return err
	}

	checkpoints := discovery.Checkpointers{discovery.NewFileCheckpointer(output)}
	var pending []string

	if opts.stateDSN != "" {
		state, err := open.DSN(ctx, opts.stateDSN)
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}
		defer state.Close()

		crawlState, err := open.Need(state.CrawlState, state.Backend, "crawl state")
		if err != nil {
			return err
		}
		seen, stored, err := discovery.LoadState(ctx, crawlState)
		if err != nil {
			return err
		}
		existing = append(existing, seen...)
		pending = stored

		store := discovery.NewStoreCheckpointer(crawlState, "")
		logger.Printf("crawl run %s", store.RunID())
		checkpoints = append(checkpoints, store)
	}

	index := discovery.NewIndex(existing)
	logger.Printf("fetched last state %d symbols", index.Len())
	if err := checkpoints.SaveExisting(ctx, index.Snapshot()); err != nil {
		return err
	}
	if opts.fetchKnownOnly {
		return nil
	}

	seeds, err := resumeSeeds(opts.resume, pending, logger)
	if err != nil {
		return err
	}
	queue := discovery.NewQueue(nil)
	queue.Seed(seeds)

	client, err := newSearchClient(opts, logger)
	if err != nil {
		return err
	}

	out, closeSink, err := symbolSink(ctx, opts, output, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	crawler := discovery.NewCrawler(discovery.Options{
		Queue:           queue,
		Index:           index,
		Lookup:          client,
		Sink:            out,
		Checkpoint:      checkpoints,
		MaxSymbolLength: maxLen,
		EarlyExit:       b.Exhausted,
		Logger:          logger,
	})

	res, runErr := crawler.Run(ctx)
	printCrawlSummary(res)

	// a canceled run leaves loading to the next run
	if res != nil && res.Stopped != discovery.StopCanceled {
		if err := out.Flush(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// knownSymbols reads the known symbols file or, without one, the symbols
// already published on DoltHub.
func knownSymbols(ctx context.Context, path string, hub *dolthub.Client) ([]string, error) {
	if path != "" {
		return discovery.LoadSymbols(path)
	}
	if hub == nil {
		return nil, nil
	}
	rows, err := hub.FetchSymbols(ctx, dolthub.FetchSymbolsOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch known symbols: %w", err)
	}
	symbols := make([]string, len(rows))
	for i, r := range rows {
		symbols[i] = r.Symbol
	}
	return symbols, nil
}

// resumeSeeds picks the first candidates: the resume file, then the pending
// candidates of the state store, then the first search characters.
func resumeSeeds(path string, pending []string, logger *log.Logger) ([]string, error) {
	if path != "" {
		symbols, err := discovery.LoadSymbols(path)
		if err != nil {
			return nil, fmt.Errorf("load resume file: %w", err)
		}
		if len(symbols) > 0 {
			logger.Printf("use resume file with %d searches", len(symbols))
			return symbols, nil
		}
		logger.Printf("do not use resume file as it is empty")
	}
	if len(pending) > 0 {
		logger.Printf("resume %d searches from the state store", len(pending))
		return pending, nil
	}
	return strings.Split(discovery.FirstSearchCharacters, ""), nil
}

func newSearchClient(opts symbolFlags, logger *log.Logger) (*yahoo.Client, error) {
	yopts := yahoo.Options{
		Retries:   opts.retries,
		Ease:      !opts.noEase,
		SocksPort: opts.torSocksPort,
		Logger:    logger,
	}
	if opts.torControlPort > 0 {
		if opts.torSocksPort == 0 {
			return nil, errors.New("--tor-control-port requires --tor-socks-port")
		}
		yopts.Tor = &yahoo.TorController{
			Addr:     "127.0.0.1:" + strconv.Itoa(opts.torControlPort),
			Password: opts.torControlPassword,
		}
	}
	return yahoo.NewClient(yopts), nil
}

// symbolSink appends to the output file and, if configured, a store and a
// dolt import of the output file.
func symbolSink(ctx context.Context, opts symbolFlags, output string, logger *log.Logger) (sink.Multi, func(), error) {
	out := sink.Multi{sink.NewCSVSink(output)}
	closeFn := func() {}

	if opts.database != "" {
		stores, err := open.DSN(ctx, opts.database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		symbols, err := open.Need(stores.Symbols, stores.Backend, "symbol")
		if err != nil {
			stores.Close()
			return nil, nil, err
		}
		out = append(out, &sink.StoreSink{Symbols: symbols})
		closeFn = func() { _ = stores.Close() }
	}

	if opts.doltLoad {
		out = append(out, &sink.DoltImport{
			Importer: newLocalRepo(logger),
			Table:    dolthub.SymbolTable,
			File:     output,
		})
	}
	return out, closeFn, nil
}

func printCrawlSummary(res *discovery.Result) {
	if res == nil {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	status := green(string(res.Stopped))
	switch res.Stopped {
	case discovery.StopEarlyExit, discovery.StopCanceled:
		status = yellow(string(res.Stopped))
	case discovery.StopFailed:
		status = red(string(res.Stopped))
	}

	fmt.Printf("\n%s %s\n", bold("crawl"), status)
	fmt.Printf("  processed:     %d\n", res.Processed)
	fmt.Printf("  discovered:    %d\n", res.Discovered)
	fmt.Printf("  errors:        %d\n", res.Errors)
	fmt.Printf("  remaining:     %d\n", res.Remaining)
	fmt.Printf("  longest query: %d\n", res.LongestQuery)
}
