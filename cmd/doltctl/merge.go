package main

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"findb/internal/dolt"
)

var (
	mergeRepo repoFlags
	mergeOpts dolt.MergeOptions

	pushAddChanges string
	pushStageAll   bool
	pushMessage    string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a source branch into a target branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("merge", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			opts := mergeOpts
			opts.Database = mergeRepo.database
			opts.ForceClone = mergeRepo.forceClone
			opts.ForceInit = mergeRepo.forceInit
			return repo.Merge(ctx, opts)
		})
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Stage, commit and push the current branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("push", func(ctx context.Context, repo *dolt.Repo, logger *log.Logger) error {
			return repo.Push(ctx, dolt.PushOptions{
				Paths:   strings.Fields(pushAddChanges),
				All:     pushStageAll,
				Message: pushMessage,
			})
		})
	},
}

func init() {
	addRepoFlags(mergeCmd, &mergeRepo)
	f := mergeCmd.Flags()
	f.StringVarP(&mergeOpts.Source, "source-branch", "s", "", "Branch name to be merged into target")
	f.StringVarP(&mergeOpts.Target, "target-branch", "t", "main", "Branch name where source branch gets merged into")
	f.StringVarP(&mergeOpts.Message, "commit-message", "m", "merge", "Commit message")
	f.BoolVarP(&mergeOpts.Push, "push", "p", false, "Push the updated branch")
	f.BoolVar(&mergeOpts.DeleteSource, "delete-source", false, "Delete source branch after merge/push")
	f.BoolVar(&mergeOpts.Theirs, "theirs", false, "Resolve conflicts using theirs")
	f.BoolVar(&mergeOpts.Ours, "ours", false, "Resolve conflicts using ours")
	_ = mergeCmd.MarkFlagRequired("source-branch")
	mergeCmd.MarkFlagsMutuallyExclusive("theirs", "ours")

	pushCmd.Flags().StringVarP(&pushAddChanges, "add-changes", "a", "", "Stage only specified changes separated by blanks")
	pushCmd.Flags().BoolVar(&pushStageAll, "stage-all", false, "Stage all changes")
	pushCmd.Flags().StringVarP(&pushMessage, "commit-message", "m", "merge", "Commit message")

	rootCmd.AddCommand(mergeCmd, pushCmd)
}
