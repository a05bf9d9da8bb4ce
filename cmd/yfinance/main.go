// Package main provides the yfinance jobs: symbol discovery, quote download
// and symbol info fetch.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"findb/internal/budget"
	"findb/internal/cli"
	"findb/internal/config"
	"findb/internal/dolt"
	"findb/internal/dolthub"
	"findb/internal/observability"
)

// Defaults shared by the jobs.
const (
	defaultRepoDatabase = "adagrad/findb"
	defaultDSN          = "sqlite:///fin.meta.db.sqlite"
)

var (
	metricsAddr string
	minFree     string
)

var rootCmd = &cobra.Command{
	Use:           "yfinance",
	Short:         "Collect symbols, quotes and symbol info from Yahoo Finance",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "Prometheus metrics HTTP address (empty disables)")
	rootCmd.PersistentFlags().StringVar(&minFree, "min-free", budget.DefaultMinFree, "Stop early when free disk space drops below this size")
}

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runJob wires signal handling and the metrics listener around fn.
func runJob(name string, fn func(ctx context.Context, logger *log.Logger) error) error {
	logger := log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lshortfile)

	ctx, done := cli.SignalContext(context.Background(), logger)
	defer done()

	cli.ServeMetrics(ctx, metricsAddr, logger)

	started := time.Now()
	err := fn(ctx, logger)
	if err == nil {
		observability.RecordRunSuccess(name, time.Now().Unix())
	}
	logger.Printf("%s finished in %v", name, time.Since(started).Round(time.Second))
	return err
}

// newBudget converts the --time minutes flag into a run budget over paths.
// Negative minutes mean no time limit.
func newBudget(minutes int, logger *log.Logger, paths ...string) (*budget.Budget, error) {
	maxRuntime := budget.NoLimit
	if minutes >= 0 {
		maxRuntime = time.Duration(minutes) * time.Minute
	}
	b, err := budget.New(maxRuntime, minFree, paths...)
	if err != nil {
		return nil, err
	}
	b.Logger = logger
	return b, nil
}

// hasRepo reports whether a DoltHub database was named.
func hasRepo(repoDatabase string) bool {
	return repoDatabase != "" && repoDatabase != "None"
}

func newDoltHub(repoDatabase string, logger *log.Logger) *dolthub.Client {
	return dolthub.NewClient(repoDatabase, dolthub.WithLogger(logger))
}

// newLocalRepo returns the dolt repository in the working directory.
func newLocalRepo(logger *log.Logger) *dolt.Repo {
	runner := dolt.NewExecRunner(".")
	runner.Logger = logger
	return dolt.NewRepo(".", runner, logger)
}
