package dolt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDolt writes a shell script standing in for the dolt binary.
func fakeDolt(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	bin := filepath.Join(t.TempDir(), "dolt")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755))
	return bin
}

func TestExecRunner(t *testing.T) {
	bin := fakeDolt(t, `echo "args: $*"`)
	r := &ExecRunner{Bin: bin, Dir: t.TempDir(), Logger: quiet()}

	out, err := r.Run(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, "args: status\n", out)
}

func TestExecRunner_CommandError(t *testing.T) {
	bin := fakeDolt(t, `echo "fatal: no remote" >&2; exit 3`)
	r := &ExecRunner{Bin: bin, Logger: quiet()}

	_, err := r.Run(context.Background(), "pull", "origin")
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, []string{"pull", "origin"}, cmdErr.Args)
	assert.Contains(t, cmdErr.Stderr, "no remote")
}

func TestRunWithServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".dolt"), 0o755))
	bin := fakeDolt(t, `touch .dolt/sql-server.lock; trap 'exit 0' INT; while true; do sleep 0.05; done`)

	code, err := RunWithServer(context.Background(), ServerOptions{
		Bin:       bin,
		Dir:       dir,
		Startup:   100 * time.Millisecond,
		StopGrace: 2 * time.Second,
		Logger:    quiet(),
	}, []string{"sh", "-c", "exit 4"})
	require.NoError(t, err)
	assert.Equal(t, 4, code)

	_, statErr := os.Stat(filepath.Join(dir, ".dolt", "sql-server.lock"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStartServer_ExitsEarly(t *testing.T) {
	bin := fakeDolt(t, `exit 1`)
	_, err := StartServer(context.Background(), ServerOptions{Bin: bin, Dir: t.TempDir(), Startup: 2 * time.Second, Logger: quiet()})
	assert.Error(t, err)
}

func TestStartServer_Command(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "started")
	bin := fakeDolt(t, `touch "$1"; trap 'exit 0' INT; while true; do sleep 0.05; done`)

	srv, err := StartServer(context.Background(), ServerOptions{
		Bin:       "does-not-exist",
		Dir:       dir,
		Command:   []string{bin, marker},
		Startup:   100 * time.Millisecond,
		StopGrace: 2 * time.Second,
		Logger:    quiet(),
	})
	require.NoError(t, err)
	srv.Stop()

	_, statErr := os.Stat(marker)
	assert.NoError(t, statErr)
}
