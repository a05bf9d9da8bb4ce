package dolt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when the directory is not a dolt repository
// and neither clone nor init was requested.
var ErrNotRepository = errors.New("not a dolt repository")

// ErrMergeConflict is returned when a merge leaves conflicts and no
// resolution strategy was chosen.
var ErrMergeConflict = errors.New("merge conflict")

// Remote is the name of the upstream remote.
const Remote = "origin"

// Repo is a local dolt repository.
type Repo struct {
	runner Runner
	dir    string
	logger *log.Logger
}

// NewRepo creates a repository handle on dir using runner.
func NewRepo(dir string, runner Runner, logger *log.Logger) *Repo {
	if logger == nil {
		logger = log.New(os.Stdout, "[dolt] ", log.LstdFlags)
	}
	return &Repo{runner: runner, dir: dir, logger: logger}
}

// Dir returns the repository directory.
func (r *Repo) Dir() string {
	return r.dir
}

// Exists reports whether dir holds a dolt repository.
func (r *Repo) Exists() bool {
	info, err := os.Stat(filepath.Join(r.dir, ".dolt"))
	return err == nil && info.IsDir()
}

// Status returns the output of dolt status.
func (r *Repo) Status(ctx context.Context) (string, error) {
	return r.runner.Run(ctx, "status")
}

// CurrentBranch returns the checked out branch.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Branches returns the local branch names.
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	out, err := r.runner.Run(ctx, "branch")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line != "" {
			branches = append(branches, strings.Fields(line)[0])
		}
	}
	return branches, nil
}

func (r *Repo) hasBranch(ctx context.Context, branch string) (bool, error) {
	branches, err := r.Branches(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b == branch {
			return true, nil
		}
	}
	return false, nil
}

// Checkout switches to branch, creating it from the current head if create is set.
func (r *Repo) Checkout(ctx context.Context, branch string, create bool) error {
	args := []string{"checkout"}
	if create {
		args = append(args, "-b")
	}
	_, err := r.runner.Run(ctx, append(args, branch)...)
	return err
}

// CheckoutRemoteBranch makes sure dir is a clone of database ("owner/name"),
// checks out branch and pulls it. A missing repository is cloned if
// forceClone is set or initialised with an origin remote if forceInit is set.
func (r *Repo) CheckoutRemoteBranch(ctx context.Context, database string, forceClone, forceInit bool, branch string) error {
	if !r.Exists() {
		switch {
		case forceClone:
			r.logger.Printf("clone %s into %s", database, r.dir)
			if _, err := r.runner.Run(ctx, "clone", database, "."); err != nil {
				return fmt.Errorf("clone %s: %w", database, err)
			}
		case forceInit:
			r.logger.Printf("init repository with remote %s", database)
			if _, err := r.runner.Run(ctx, "init"); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if _, err := r.runner.Run(ctx, "remote", "add", Remote, database); err != nil {
				return fmt.Errorf("add remote %s: %w", database, err)
			}
		default:
			return fmt.Errorf("%s: %w", r.dir, ErrNotRepository)
		}
	}

	if _, err := r.runner.Run(ctx, "fetch", Remote); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	current, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current != branch {
		local, err := r.hasBranch(ctx, branch)
		if err != nil {
			return err
		}
		if local {
			err = r.Checkout(ctx, branch, false)
		} else {
			_, err = r.runner.Run(ctx, "checkout", "-b", branch, Remote+"/"+branch)
		}
		if err != nil {
			return fmt.Errorf("checkout %s: %w", branch, err)
		}
	}

	return r.Pull(ctx, branch)
}

// Pull merges the remote branch into the local one.
func (r *Repo) Pull(ctx context.Context, branch string) error {
	if _, err := r.runner.Run(ctx, "pull", Remote, branch); err != nil {
		return fmt.Errorf("pull %s: %w", branch, err)
	}
	return nil
}

// PushOptions selects what Push stages.
type PushOptions struct {
	Paths   []string // tables to stage
	All     bool     // stage every change; overrides Paths
	Message string
}

// Push stages, commits and pushes the current branch. An empty commit is not an error.
func (r *Repo) Push(ctx context.Context, opts PushOptions) error {
	if opts.All || len(opts.Paths) == 0 {
		if _, err := r.runner.Run(ctx, "add", "."); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	} else {
		if _, err := r.runner.Run(ctx, append([]string{"add"}, opts.Paths...)...); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	if err := r.commit(ctx, opts.Message); err != nil {
		return err
	}

	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if _, err := r.runner.Run(ctx, "push", Remote, branch); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	return nil
}

func (r *Repo) commit(ctx context.Context, message string) error {
	if message == "" {
		message = "update"
	}
	_, err := r.runner.Run(ctx, "commit", "-m", message)
	if err != nil && nothingToCommit(err) {
		r.logger.Println("nothing to commit")
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nothingToCommit(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	out := strings.ToLower(cmdErr.Output())
	return strings.Contains(out, "no changes added to commit") || strings.Contains(out, "nothing to commit")
}

func hasConflict(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && strings.Contains(strings.ToUpper(cmdErr.Output()), "CONFLICT")
}

// MergeOptions configures Merge.
type MergeOptions struct {
	Database     string // owner/name of the remote
	ForceClone   bool
	ForceInit    bool
	Source       string
	Target       string // default "main"
	Message      string
	Push         bool
	DeleteSource bool
	Theirs       bool // resolve conflicts with the source rows
	Ours         bool // resolve conflicts with the target rows
}

// Merge checks out Target, merges Source into it and optionally pushes the
// result and deletes Source.
func (r *Repo) Merge(ctx context.Context, opts MergeOptions) error {
	if opts.Source == "" {
		return errors.New("merge: source branch required")
	}
	if opts.Theirs && opts.Ours {
		return errors.New("merge: theirs and ours are exclusive")
	}
	if opts.Target == "" {
		opts.Target = "main"
	}
	if opts.Message == "" {
		opts.Message = "merge"
	}

	if err := r.CheckoutRemoteBranch(ctx, opts.Database, opts.ForceClone, opts.ForceInit, opts.Target); err != nil {
		return err
	}

	local, err := r.hasBranch(ctx, opts.Source)
	if err != nil {
		return err
	}
	ref := opts.Source
	if !local {
		ref = Remote + "/" + opts.Source
	}

	_, err = r.runner.Run(ctx, "merge", "-m", opts.Message, ref)
	if err != nil {
		if !hasConflict(err) {
			return fmt.Errorf("merge %s into %s: %w", ref, opts.Target, err)
		}
		strategy := ""
		switch {
		case opts.Theirs:
			strategy = "--theirs"
		case opts.Ours:
			strategy = "--ours"
		default:
			return fmt.Errorf("merge %s into %s: %w", ref, opts.Target, ErrMergeConflict)
		}
		r.logger.Printf("resolve conflicts using %s", strings.TrimPrefix(strategy, "--"))
		if _, err := r.runner.Run(ctx, "conflicts", "resolve", strategy, "."); err != nil {
			return fmt.Errorf("resolve conflicts: %w", err)
		}
	}

	if _, err := r.runner.Run(ctx, "add", "."); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := r.commit(ctx, opts.Message); err != nil {
		return err
	}

	if opts.Push {
		if _, err := r.runner.Run(ctx, "push", Remote, opts.Target); err != nil {
			return fmt.Errorf("push %s: %w", opts.Target, err)
		}
	}

	if opts.DeleteSource {
		if local {
			if _, err := r.runner.Run(ctx, "branch", "-D", opts.Source); err != nil {
				return fmt.Errorf("delete branch %s: %w", opts.Source, err)
			}
		}
		if opts.Push {
			if _, err := r.runner.Run(ctx, "push", Remote, ":"+opts.Source); err != nil {
				return fmt.Errorf("delete remote branch %s: %w", opts.Source, err)
			}
		}
	}
	return nil
}

// TableImport updates table with the rows of csvFile.
func (r *Repo) TableImport(ctx context.Context, table, csvFile string) error {
	if _, err := os.Stat(csvFile); err != nil {
		return fmt.Errorf("import %s: %w", table, err)
	}
	if _, err := r.runner.Run(ctx, "table", "import", "-u", table, csvFile); err != nil {
		return fmt.Errorf("import %s: %w", table, err)
	}
	return nil
}

// SQL executes query and returns the CLI output.
func (r *Repo) SQL(ctx context.Context, query string) (string, error) {
	out, err := r.runner.Run(ctx, "sql", "-q", query)
	if err != nil {
		return out, fmt.Errorf("sql: %w", err)
	}
	return out, nil
}
