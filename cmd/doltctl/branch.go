package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"findb/internal/dolt"
)

var (
	branchoutRepo   repoFlags
	branchoutSource string
	branchoutBranch string

	pullRepo   repoFlags
	pullBranch string
)

var branchoutCmd = &cobra.Command{
	Use:   "branchout",
	Short: "Check out a remote branch and create a new branch from it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("branchout", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			if err := repo.CheckoutRemoteBranch(ctx, branchoutRepo.database, branchoutRepo.forceClone, branchoutRepo.forceInit, branchoutSource); err != nil {
				return err
			}
			if err := repo.Checkout(ctx, branchoutBranch, true); err != nil {
				return err
			}
			current, err := repo.CurrentBranch(ctx)
			if err != nil {
				return err
			}
			if current != branchoutBranch {
				return fmt.Errorf("failed to create the new branch %s, still on %s", branchoutBranch, current)
			}
			return nil
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Check out and pull a remote branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("pull", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			return repo.CheckoutRemoteBranch(ctx, pullRepo.database, pullRepo.forceClone, pullRepo.forceInit, pullBranch)
		})
	},
}

func init() {
	addRepoFlags(branchoutCmd, &branchoutRepo)
	branchoutCmd.Flags().StringVarP(&branchoutSource, "source-branch", "s", "main", "Branch to branch out from")
	branchoutCmd.Flags().StringVarP(&branchoutBranch, "branch", "b", "", "Branch name to be created and checked out")
	_ = branchoutCmd.MarkFlagRequired("branch")

	addRepoFlags(pullCmd, &pullRepo)
	pullCmd.Flags().StringVarP(&pullBranch, "branch", "b", "main", "Remote branch name to be pulled and checked out")

	rootCmd.AddCommand(branchoutCmd, pullCmd)
}
