package dolt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// ServerOptions configures a dolt sql-server process.
type ServerOptions struct {
	Bin        string        // default "dolt"
	Dir        string        // repository directory
	ConfigPath string        // passed as --config if set
	Command    []string      // replaces "<Bin> sql-server [--config <ConfigPath>]" if set
	Startup    time.Duration // wait before the server is considered up; default 1s
	StopGrace  time.Duration // wait after SIGINT before SIGKILL; default 5s
	Logger     *log.Logger
}

// Server is a running dolt sql-server.
type Server struct {
	opts ServerOptions
	cmd  *exec.Cmd
	done chan error
}

// StartServer launches dolt sql-server and waits for the startup delay.
func StartServer(ctx context.Context, opts ServerOptions) (*Server, error) {
	if opts.Bin == "" {
		opts.Bin = "dolt"
	}
	if opts.Startup <= 0 {
		opts.Startup = time.Second
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[dolt] ", log.LstdFlags)
	}

	bin, args := opts.Bin, []string{"sql-server"}
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	if len(opts.Command) > 0 {
		bin, args = opts.Command[0], opts.Command[1:]
	}
	cmd := exec.Command(bin, args...)
	cmd.Dir = opts.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	opts.Logger.Printf("start server: %s %v", bin, args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sql-server: %w", err)
	}

	s := &Server{opts: opts, cmd: cmd, done: make(chan error, 1)}
	go func() { s.done <- cmd.Wait() }()

	select {
	case err := <-s.done:
		s.done <- err
		return nil, fmt.Errorf("sql-server exited during startup: %v", err)
	case <-ctx.Done():
		s.Stop()
		return nil, ctx.Err()
	case <-time.After(opts.Startup):
	}
	opts.Logger.Println("server started")
	return s, nil
}

// Wait blocks until the server exits or ctx is done, then stops it.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.done:
		s.done <- err
		return err
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}
}

// Stop interrupts the server, kills it after the grace period and removes
// the stale sql-server lock file.
func (s *Server) Stop() {
	s.opts.Logger.Println("STOPPING Server ... ")
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGINT)
	}

	select {
	case err := <-s.done:
		s.done <- err
	case <-time.After(s.opts.StopGrace):
		_ = s.cmd.Process.Kill()
		s.done <- <-s.done
	}

	lock := filepath.Join(s.opts.Dir, ".dolt", "sql-server.lock")
	if err := os.Remove(lock); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.opts.Logger.Printf("remove %s: %v", lock, err)
	}
}

// RunWithServer starts the server, runs command while it is up and stops it.
// Without a command it serves until ctx is done or the server exits.
// The exit code of command is returned.
func RunWithServer(ctx context.Context, opts ServerOptions, command []string) (int, error) {
	srv, err := StartServer(ctx, opts)
	if err != nil {
		return -1, err
	}

	if len(command) == 0 {
		err := srv.Wait(ctx)
		if errors.Is(err, context.Canceled) {
			return 0, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, err
	}
	defer srv.Stop()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("run %s: %w", command[0], err)
	}
	return 0, nil
}
