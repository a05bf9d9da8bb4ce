package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"findb/internal/cli"
	"findb/internal/dolt"
)

var (
	sqlRepo    repoFlags
	sqlBranch  string
	sqlFeature string
	sqlQuery   string
	sqlPush    bool

	serverRepo       repoFlags
	serverBranch     string
	serverFeature    string
	serverAddChanges string
	serverPush       bool
	serverAndExec    string
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Run a query on a fresh checkout and optionally push the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("sql", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			if sqlQuery == "" {
				return errors.New("--query is required")
			}
			if err := repo.CheckoutRemoteBranch(ctx, sqlRepo.database, sqlRepo.forceClone, sqlRepo.forceInit, sqlBranch); err != nil {
				return err
			}
			if err := checkoutFeature(ctx, repo, sqlBranch, sqlFeature, logger); err != nil {
				return err
			}

			out, err := repo.SQL(ctx, sqlQuery)
			if err != nil {
				return err
			}
			fmt.Print(out)

			if sqlPush {
				return repo.Push(ctx, dolt.PushOptions{All: true, Message: sqlQuery})
			}
			return nil
		})
	},
}

var sqlServerCmd = &cobra.Command{
	Use:   "sqlserver",
	Short: "Run dolt sql-server, optionally only while another command runs",
	Long: `Start dolt sql-server on a fresh checkout. With --and-exec the server is
stopped once the command exits and its exit code is returned. The server
configuration file is read from DOLT_SQL_SERVER_CONFIG if set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("sqlserver", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			return runSQLServer(ctx, repo, logger)
		})
	},
}

func init() {
	addRepoFlags(sqlCmd, &sqlRepo)
	sqlCmd.Flags().StringVarP(&sqlBranch, "branch", "b", "main", "Branch name to be pulled and checked out")
	sqlCmd.Flags().StringVarP(&sqlFeature, "feature-branch", "f", "", "Branch off a feature branch from the specified branch")
	sqlCmd.Flags().StringVarP(&sqlQuery, "query", "q", "", "SQL query to execute")
	sqlCmd.Flags().BoolVarP(&sqlPush, "push", "p", false, "Push the updated branch")

	addRepoFlags(sqlServerCmd, &serverRepo)
	f := sqlServerCmd.Flags()
	f.StringVarP(&serverBranch, "branch", "b", "main", "Branch name to be pulled and checked out")
	f.StringVarP(&serverFeature, "feature-branch", "f", "", "Branch off a feature branch from the specified branch")
	f.StringVarP(&serverAddChanges, "add-changes", "a", ".", `Changes to stage before pushing, "." means all changes`)
	f.BoolVarP(&serverPush, "push", "p", false, "Push an eventually updated branch")
	f.StringVar(&serverAndExec, "and-exec", "", "Command to be executed after the server has started (stops server afterwards)")

	rootCmd.AddCommand(sqlCmd, sqlServerCmd)
}

func runSQLServer(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
	if err := repo.CheckoutRemoteBranch(ctx, serverRepo.database, serverRepo.forceClone, serverRepo.forceInit, serverBranch); err != nil {
		return err
	}
	if err := checkoutFeature(ctx, repo, serverBranch, serverFeature, logger); err != nil {
		return err
	}

	command, err := cli.SplitCommand(serverAndExec)
	if err != nil {
		return fmt.Errorf("parse --and-exec: %w", err)
	}

	rc, err := dolt.RunWithServer(ctx, dolt.ServerOptions{
		Dir:        repo.Dir(),
		ConfigPath: os.Getenv("DOLT_SQL_SERVER_CONFIG"),
		Logger:     logger,
	}, command)
	if err != nil {
		return err
	}

	if !serverPush {
		if rc != 0 {
			return &exitCodeError{code: rc}
		}
		return nil
	}

	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	logger.Printf("add and push changes made to the branch %s", branch)
	if rc != 0 {
		return &exitCodeError{code: rc}
	}

	message := serverAndExec
	if message == "" {
		message = "add changes from server run"
	}
	paths := strings.Fields(serverAddChanges)
	return repo.Push(ctx, dolt.PushOptions{
		Paths:   paths,
		All:     len(paths) == 1 && paths[0] == ".",
		Message: message,
	})
}
