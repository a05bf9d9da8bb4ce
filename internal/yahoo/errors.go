package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrMaxRetriesExceeded is matched by the error returned after every retry failed.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// StatusError is a non-2xx response. It is retried unless the request
// declared its code final (the chart endpoint answers 404 for delisted symbols).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// RetriesError reports that all attempts of a request failed with transient errors.
// It is terminal: the crawler stops instead of skipping the candidate.
type RetriesError struct {
	Attempts int
	Last     error
}

func (e *RetriesError) Error() string {
	return fmt.Sprintf("stop after %d failed attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesError) Unwrap() error { return e.Last }

// Is makes errors.Is(err, ErrMaxRetriesExceeded) hold.
func (e *RetriesError) Is(target error) bool { return target == ErrMaxRetriesExceeded }

// Terminal marks the error as fatal for the whole crawl.
func (e *RetriesError) Terminal() bool { return true }

// IsTransient reports whether err is worth retrying: a bad HTTP status, a
// reset or refused connection, a truncated body or a timeout.
// Cancellation of the caller's context is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return true
	}
	// client timeouts also match context.DeadlineExceeded
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
