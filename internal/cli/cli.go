// Package cli holds process plumbing shared by the findb binaries.
package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/shlex"

	"findb/internal/observability"
)

// ForceExitTimeout bounds a graceful shutdown after the first signal.
const ForceExitTimeout = 30 * time.Second

// exit is replaced by tests.
var exit = os.Exit

// SignalContext returns a context canceled by the first SIGINT or SIGTERM.
// A second signal, or ForceExitTimeout without a call to done, exits the process.
func SignalContext(parent context.Context, logger *log.Logger) (ctx context.Context, done func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return watchSignals(parent, logger, sigCh, ForceExitTimeout, func() { signal.Stop(sigCh) })
}

func watchSignals(parent context.Context, logger *log.Logger, sigCh <-chan os.Signal, timeout time.Duration, stop func()) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	finished := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
			cancel()
		case <-finished:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			exit(1)
		case <-time.After(timeout):
			logger.Printf("Graceful shutdown timed out after %v, forcing exit", timeout)
			exit(1)
		case <-finished:
		}
	}()

	var closed bool
	return ctx, func() {
		if closed {
			return
		}
		closed = true
		stop()
		close(finished)
		cancel()
	}
}

// ServeMetrics exposes /health and /metrics on addr until ctx is done.
// An empty addr disables the listener.
func ServeMetrics(ctx context.Context, addr string, logger *log.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Printf("Starting metrics server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server error: %v", err)
		}
	}()
}

// SplitCommand splits a shell-like command line into arguments.
func SplitCommand(line string) ([]string, error) {
	return shlex.Split(line)
}

// Getenv returns the environment variable key or fallback if unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
