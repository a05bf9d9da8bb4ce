// Package main provides doltctl, a wrapper around the dolt CLI that keeps a
// local clone of the findb repository in sync with DoltHub.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"findb/internal/cli"
	"findb/internal/config"
	"findb/internal/dolt"
)

const defaultRepoDatabase = "adagrad/findb"

// repoFlags select and prepare the local repository.
type repoFlags struct {
	database   string
	forceClone bool
	forceInit  bool
}

var workDir string

var rootCmd = &cobra.Command{
	Use:           "doltctl",
	Short:         "Branch, merge, push and serve the local dolt repository",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", cli.Getenv("DOLT_REPO_DIR", "."), "Path of the local dolt repository")
}

// exitCodeError carries the exit code of a command run by doltctl.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("the last command exited with rc: %d", e.code)
}

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

func addRepoFlags(cmd *cobra.Command, f *repoFlags) {
	cmd.Flags().StringVarP(&f.database, "repo-database", "d", defaultRepoDatabase, "DoltHub repository and database name")
	cmd.Flags().BoolVarP(&f.forceClone, "force-clone", "c", false, "Force a clone if the working directory is not a dolt repository")
	cmd.Flags().BoolVarP(&f.forceInit, "force-init", "i", false, "Force a repo init and add origin if the working directory is not a dolt repository")
}

// run wires signal handling around fn and hands it the repository.
func run(name string, fn func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error) error {
	logger := log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lshortfile)

	ctx, done := cli.SignalContext(context.Background(), logger)
	defer done()

	runner := dolt.NewExecRunner(workDir)
	runner.Logger = logger
	return fn(ctx, dolt.NewRepo(workDir, runner, logger), logger)
}

// checkoutFeature optionally branches off feature from the current branch.
func checkoutFeature(ctx context.Context, repo *dolt.Repo, from, feature string, logger *log.Logger) error {
	if feature == "" {
		return nil
	}
	logger.Printf("create new feature branch %s from %s", feature, from)
	if err := repo.Checkout(ctx, feature, true); err != nil {
		return err
	}
	status, err := repo.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}
