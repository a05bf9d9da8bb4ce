package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"findb/internal/dolt"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the branch and working set status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("status", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			if !repo.Exists() {
				return fmt.Errorf("%s: %w", repo.Dir(), dolt.ErrNotRepository)
			}

			branch, err := repo.CurrentBranch(ctx)
			if err != nil {
				return err
			}
			status, err := repo.Status(ctx)
			if err != nil {
				return err
			}

			cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s %s\n\n%s\n", cyan("branch"), green(branch), status)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
