// Package dolt drives a local dolt repository through the dolt CLI.
package dolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"findb/internal/observability"
)

// CommandError is a dolt invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	return fmt.Sprintf("dolt %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Output returns stdout and stderr of the failed command.
func (e *CommandError) Output() string {
	return e.Stdout + e.Stderr
}

// Runner executes dolt subcommands and returns their stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs the dolt binary. Invocations are serialised because dolt
// holds a repository lock per command.
type ExecRunner struct {
	Bin    string // default "dolt"
	Dir    string // repository directory; default working directory
	Logger *log.Logger

	mu sync.Mutex
}

// NewExecRunner creates a runner for the repository in dir.
func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{
		Bin:    "dolt",
		Dir:    dir,
		Logger: log.New(os.Stdout, "[dolt] ", log.LstdFlags),
	}
}

// Run executes one dolt command.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bin := r.Bin
	if bin == "" {
		bin = "dolt"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if r.Logger != nil {
		r.Logger.Printf("%s %s\n\t .. %d %s %s", bin, strings.Join(args, " "), cmd.ProcessState.ExitCode(), strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
	}

	var command string
	if len(args) > 0 {
		command = args[0]
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = &CommandError{Args: args, ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}
		} else {
			err = fmt.Errorf("run %s: %w", bin, err)
		}
		observability.RecordDoltCommand(command, err)
		return stdout.String(), err
	}

	observability.RecordDoltCommand(command, nil)
	return stdout.String(), nil
}
