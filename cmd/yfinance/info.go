package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"findb/internal/discovery"
	"findb/internal/dolthub"
	"findb/internal/info"
	"findb/internal/sink"
	"findb/internal/storage/open"
	"findb/internal/yahoo"
)

type infoFlags struct {
	minutes      int
	output       string
	repoDatabase string
	database     string
	knownSymbols string
	doltLoad     bool
}

var infoOpts infoFlags

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Fetch metadata of symbols that have no info yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob("info", func(ctx context.Context, logger *log.Logger) error {
			return runInfo(ctx, logger, infoOpts)
		})
	},
}

func init() {
	f := infoCmd.Flags()
	f.IntVarP(&infoOpts.minutes, "time", "t", -1, "Maximum runtime in minutes (negative runs until done)")
	f.StringVarP(&infoOpts.output, "output", "o", "yfinfo.csv", "Filename holding the results, appends if exists")
	f.StringVar(&infoOpts.repoDatabase, "repo-database", defaultRepoDatabase, "DoltHub repository listing symbols without info (None disables)")
	f.StringVarP(&infoOpts.database, "database", "d", "", "Store DSN receiving the info rows and listing symbols without info, e.g. "+defaultDSN)
	f.StringVarP(&infoOpts.knownSymbols, "known-symbols", "s", "", "Symbols file instead of selecting them (one symbol per line)")
	f.BoolVar(&infoOpts.doltLoad, "dolt-load", false, "Import the output file into the local dolt repository when done")

	rootCmd.AddCommand(infoCmd)
}

func runInfo(ctx context.Context, logger *log.Logger, opts infoFlags) error {
	output, err := filepath.Abs(opts.output)
	if err != nil {
		return err
	}
	b, err := newBudget(opts.minutes, logger, filepath.Dir(output))
	if err != nil {
		return err
	}

	out := sink.Multi{sink.NewInfoCSVSink(output)}
	var stores *open.Stores
	if opts.database != "" {
		if stores, err = open.DSN(ctx, opts.database); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer stores.Close()
		if _, err := open.Need(stores.Info, stores.Backend, "info"); err != nil {
			return err
		}
		out = append(out, &sink.StoreSink{Info: stores.Info})
	}
	if opts.doltLoad {
		out = append(out, &sink.DoltImport{
			Importer: newLocalRepo(logger),
			Table:    dolthub.InfoTable,
			File:     output,
		})
	}

	symbols, err := symbolsWithoutInfo(ctx, opts, stores)
	if err != nil {
		return err
	}
	logger.Printf("fetch info of %d symbols", len(symbols))

	fetcher := info.NewFetcher(info.Options{
		Provider:  yahoo.NewClient(yahoo.Options{Logger: logger}),
		Sink:      out,
		EarlyExit: b.Exhausted,
		Logger:    logger,
	})
	res, runErr := fetcher.Run(ctx, symbols)
	if res != nil {
		logger.Printf("fetched: %d errors: %d stopped early: %v", res.Fetched, res.Errors, res.Stopped)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	if res != nil && res.Fetched > 0 {
		if err := out.Flush(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func symbolsWithoutInfo(ctx context.Context, opts infoFlags, stores *open.Stores) ([]string, error) {
	switch {
	case opts.knownSymbols != "":
		return discovery.LoadSymbols(opts.knownSymbols)
	case stores != nil:
		return stores.Info.SymbolsWithoutInfo(ctx)
	case hasRepo(opts.repoDatabase):
		return dolthub.NewClient(opts.repoDatabase).SymbolsWithoutInfo(ctx)
	}
	return nil, errors.New("one of --known-symbols, --database or --repo-database is required")
}
