package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"findb/internal/domain"
	"findb/internal/observability"
)

// DefaultMaxErrors is the number of failed candidates tolerated in one run.
const DefaultMaxErrors = 50

// ErrTooManyErrors is returned when the error ceiling is exceeded.
var ErrTooManyErrors = errors.New("too many lookup errors")

// Lookuper searches the remote endpoint for symbols matching query.
type Lookuper interface {
	Lookup(ctx context.Context, query string) ([]domain.Symbol, error)
}

// Sink receives newly discovered symbols.
type Sink interface {
	Append(ctx context.Context, symbols []domain.Symbol) error
}

// IsTerminal reports whether err must abort the whole crawl.
// Errors opt in by implementing Terminal() bool.
func IsTerminal(err error) bool {
	var t interface{ Terminal() bool }
	return errors.As(err, &t) && t.Terminal()
}

// StopReason tells why a crawl ended.
type StopReason string

const (
	StopCompleted StopReason = "completed"  // queue drained
	StopEarlyExit StopReason = "early_exit" // time or disk budget exhausted
	StopCanceled  StopReason = "canceled"
	StopFailed    StopReason = "failed"
)

// Result summarizes a crawl.
type Result struct {
	Processed    int // candidates taken from the queue and resolved
	Discovered   int // new symbols written to the sink
	Errors       int
	LongestQuery int
	Remaining    int // candidates left in the queue
	Stopped      StopReason
}

// Options configures a Crawler.
type Options struct {
	Queue           *Queue
	Index           *Index
	Lookup          Lookuper
	Sink            Sink
	Checkpoint      Checkpointer
	MaxSymbolLength int         // 0 means DefaultMaxSymbolLength
	MaxErrors       int         // 0 means DefaultMaxErrors
	EarlyExit       func() bool // checked once per candidate; nil never stops early
	Logger          *log.Logger
}

// Crawler brute-forces the symbol search space one candidate at a time.
// The queue and index are owned by the crawler for the duration of Run.
type Crawler struct {
	queue      *Queue
	index      *Index
	lookup     Lookuper
	sink       Sink
	checkpoint Checkpointer
	maxLen     int
	maxErrors  int
	earlyExit  func() bool
	logger     *log.Logger
}

// NewCrawler creates a crawler.
func NewCrawler(opts Options) *Crawler {
	c := &Crawler{
		queue:      opts.Queue,
		index:      opts.Index,
		lookup:     opts.Lookup,
		sink:       opts.Sink,
		checkpoint: opts.Checkpoint,
		maxLen:     opts.MaxSymbolLength,
		maxErrors:  opts.MaxErrors,
		earlyExit:  opts.EarlyExit,
		logger:     opts.Logger,
	}
	if c.queue == nil {
		c.queue = NewQueue(nil)
	}
	if c.index == nil {
		c.index = NewIndex(nil)
	}
	if c.maxLen <= 0 {
		c.maxLen = DefaultMaxSymbolLength
	}
	if c.maxErrors <= 0 {
		c.maxErrors = DefaultMaxErrors
	}
	if c.checkpoint == nil {
		c.checkpoint = Checkpointers(nil)
	}
	if c.logger == nil {
		c.logger = log.New(os.Stdout, "[discovery] ", log.LstdFlags)
	}
	return c
}

// Run processes candidates until the queue is empty, the early-exit
// predicate fires, the context is canceled or a terminal error occurs.
//
// Every exit except a drained queue checkpoints the remaining candidates.
// A drained queue completes checkpointers that implement Completer.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	for c.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return c.stop(ctx, res, StopCanceled, err)
		}

		query, _ := c.queue.Pop()
		observability.SetCrawlQueueSize(c.queue.Len())

		if err := c.process(ctx, query, res); err != nil {
			switch {
			case ctx.Err() != nil:
				c.queue.Requeue(query)
				return c.stop(ctx, res, StopCanceled, ctx.Err())
			case IsTerminal(err):
				observability.RecordCrawlCandidate("terminal")
				return c.stop(ctx, res, StopFailed, err)
			}

			res.Errors++
			observability.RecordCrawlCandidate("error")
			c.logger.Printf("%d: %s: %v", res.Errors, query, err)
			if res.Errors > c.maxErrors {
				return c.stop(ctx, res, StopFailed, fmt.Errorf("%w (%d): %w", ErrTooManyErrors, res.Errors, err))
			}
		}

		if c.earlyExit != nil && c.earlyExit() {
			c.logger.Println("maximum allowed runtime reached or disk full")
			return c.stop(ctx, res, StopEarlyExit, nil)
		}
	}

	res.Stopped = StopCompleted
	c.logger.Printf("DONE! nothing left to check on, longest symbol %d", res.LongestQuery)
	if done, ok := c.checkpoint.(Completer); ok {
		if err := done.Complete(ctx); err != nil {
			return res, fmt.Errorf("clear pending candidates: %w", err)
		}
	}
	return res, nil
}

// process resolves one candidate: lookup, expansion, sink and checkpoint.
func (c *Crawler) process(ctx context.Context, query string, res *Result) error {
	count := -1
	var found []domain.Symbol

	if !c.index.Contains(query) {
		symbols, err := c.lookup.Lookup(ctx, query)
		if err != nil {
			return err
		}
		found, count = symbols, len(symbols)
	}

	res.Processed++
	res.LongestQuery = max(res.LongestQuery, len(query))

	children := Expand(query, count, c.index, c.maxLen)
	c.queue.PushAll(children)
	observability.SetCrawlQueueSize(c.queue.Len())

	if count <= 0 {
		observability.RecordCrawlCandidate("empty")
		return nil
	}

	fresh := c.unknown(found)
	if len(fresh) > 0 {
		if err := c.sink.Append(ctx, fresh); err != nil {
			return fmt.Errorf("append results for %s: %w", query, err)
		}
		for _, s := range fresh {
			c.index.Add(s.Symbol)
		}
		res.Discovered += len(fresh)
		observability.RecordSymbolsDiscovered(len(fresh))
	}

	if err := c.checkpoint.SaveExisting(ctx, c.index.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint existing symbols: %w", err)
	}
	observability.RecordCrawlCandidate("found")
	return nil
}

// unknown filters symbols already in the index, including duplicates within the batch.
func (c *Crawler) unknown(symbols []domain.Symbol) []domain.Symbol {
	seen := make(map[string]struct{}, len(symbols))
	var fresh []domain.Symbol
	for _, s := range symbols {
		key := domain.NormalizeSymbol(s.Symbol)
		if key == "" || c.index.Contains(key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, s)
	}
	return fresh
}

// stop records the final state and checkpoints the untried candidates.
func (c *Crawler) stop(ctx context.Context, res *Result, reason StopReason, cause error) (*Result, error) {
	res.Stopped = reason
	res.Remaining = c.queue.Len()

	// the run context may already be canceled
	saveCtx := context.WithoutCancel(ctx)
	if err := c.checkpoint.SaveRemaining(saveCtx, c.queue.Remaining()); err != nil {
		c.logger.Printf("failed to checkpoint %d remaining candidates: %v", res.Remaining, err)
		if cause == nil {
			cause = fmt.Errorf("checkpoint remaining candidates: %w", err)
		}
	}
	return res, cause
}
