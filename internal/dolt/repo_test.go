package dolt

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and answers from a table keyed by the joined args.
type fakeRunner struct {
	calls   []string
	outputs map[string]string
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	return f.outputs[key], f.errs[key]
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func repoDir(t *testing.T, initialised bool) string {
	t.Helper()
	dir := t.TempDir()
	if initialised {
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".dolt"), 0o755))
	}
	return dir
}

func TestCurrentBranchAndBranches(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "feature-x\n"
	f.outputs["branch"] = "* feature-x\n  main\n"

	r := NewRepo(repoDir(t, true), f, quiet())

	branch, err := r.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feature-x", branch)

	branches, err := r.Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"feature-x", "main"}, branches)
}

func TestCheckout(t *testing.T) {
	f := newFakeRunner()
	r := NewRepo(repoDir(t, true), f, quiet())

	require.NoError(t, r.Checkout(context.Background(), "quotes-2024", true))
	require.NoError(t, r.Checkout(context.Background(), "main", false))
	assert.Equal(t, []string{"checkout -b quotes-2024", "checkout main"}, f.calls)
}

func TestCheckoutRemoteBranch_NotRepository(t *testing.T) {
	r := NewRepo(repoDir(t, false), newFakeRunner(), quiet())
	err := r.CheckoutRemoteBranch(context.Background(), "adagrad/findb", false, false, "main")
	assert.True(t, errors.Is(err, ErrNotRepository))
}

func TestCheckoutRemoteBranch_Clone(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "main"

	r := NewRepo(repoDir(t, false), f, quiet())
	require.NoError(t, r.CheckoutRemoteBranch(context.Background(), "adagrad/findb", true, false, "main"))
	assert.Equal(t, []string{
		"clone adagrad/findb .",
		"fetch origin",
		"branch --show-current",
		"pull origin main",
	}, f.calls)
}

func TestCheckoutRemoteBranch_InitTracksRemoteBranch(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "main"
	f.outputs["branch"] = "* main\n"

	r := NewRepo(repoDir(t, false), f, quiet())
	require.NoError(t, r.CheckoutRemoteBranch(context.Background(), "adagrad/findb", false, true, "quotes"))
	assert.Equal(t, []string{
		"init",
		"remote add origin adagrad/findb",
		"fetch origin",
		"branch --show-current",
		"branch",
		"checkout -b quotes origin/quotes",
		"pull origin quotes",
	}, f.calls)
}

func TestPush(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "quotes"

	r := NewRepo(repoDir(t, true), f, quiet())
	require.NoError(t, r.Push(context.Background(), PushOptions{Paths: []string{"yfinance_quote", "yfinance_quote_meta"}, Message: "daily quotes"}))
	assert.Equal(t, []string{
		"add yfinance_quote yfinance_quote_meta",
		"commit -m daily quotes",
		"branch --show-current",
		"push origin quotes",
	}, f.calls)
}

func TestPush_NothingToCommit(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "main"
	f.errs["commit -m update"] = &CommandError{Args: []string{"commit"}, ExitCode: 1, Stdout: "On branch main\nnothing to commit, working tree clean"}

	r := NewRepo(repoDir(t, true), f, quiet())
	require.NoError(t, r.Push(context.Background(), PushOptions{All: true}))
	assert.Contains(t, f.calls, "push origin main")
}

func TestMerge_ConflictsResolvedWithTheirs(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "main"
	f.outputs["branch"] = "* main\n  quotes\n"
	f.errs["merge -m merge quotes"] = &CommandError{Args: []string{"merge"}, ExitCode: 1, Stdout: "CONFLICT (content): Merge conflict in yfinance_quote"}

	r := NewRepo(repoDir(t, true), f, quiet())
	err := r.Merge(context.Background(), MergeOptions{
		Database:     "adagrad/findb",
		Source:       "quotes",
		Push:         true,
		DeleteSource: true,
		Theirs:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"fetch origin",
		"branch --show-current",
		"pull origin main",
		"branch",
		"merge -m merge quotes",
		"conflicts resolve --theirs .",
		"add .",
		"commit -m merge",
		"push origin main",
		"branch -D quotes",
		"push origin :quotes",
	}, f.calls)
}

func TestMerge_ConflictWithoutStrategy(t *testing.T) {
	f := newFakeRunner()
	f.outputs["branch --show-current"] = "main"
	f.outputs["branch"] = "* main\n"
	f.errs["merge -m merge origin/quotes"] = &CommandError{Args: []string{"merge"}, ExitCode: 1, Stderr: "CONFLICT"}

	r := NewRepo(repoDir(t, true), f, quiet())
	err := r.Merge(context.Background(), MergeOptions{Source: "quotes"})
	assert.True(t, errors.Is(err, ErrMergeConflict))
}

func TestMerge_Validation(t *testing.T) {
	r := NewRepo(repoDir(t, true), newFakeRunner(), quiet())
	assert.Error(t, r.Merge(context.Background(), MergeOptions{}))
	assert.Error(t, r.Merge(context.Background(), MergeOptions{Source: "x", Theirs: true, Ours: true}))
}

func TestTableImport(t *testing.T) {
	f := newFakeRunner()
	dir := repoDir(t, true)
	r := NewRepo(dir, f, quiet())

	err := r.TableImport(context.Background(), "yfinance_quote", filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, f.calls)

	csvFile := filepath.Join(dir, "AAPL.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("symbol,epoch\n"), 0o644))
	require.NoError(t, r.TableImport(context.Background(), "yfinance_quote", csvFile))
	assert.Equal(t, []string{"table import -u yfinance_quote " + csvFile}, f.calls)
}

func TestSQL(t *testing.T) {
	f := newFakeRunner()
	f.outputs["sql -q select 1"] = "1\n"
	r := NewRepo(repoDir(t, true), f, quiet())

	out, err := r.SQL(context.Background(), "select 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestCommandError(t *testing.T) {
	err := &CommandError{Args: []string{"pull", "origin", "main"}, ExitCode: 1, Stderr: "  remote not found \n"}
	assert.Equal(t, "dolt pull origin main: exit 1: remote not found", err.Error())
}
