package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"findb/internal/domain"
)

// Checkpoint file suffixes appended to the output file name.
const (
	ExistingSuffix  = ".existing.symbols"
	RemainingSuffix = ".possible.symbols"
)

// Checkpointer persists crawl progress.
type Checkpointer interface {
	// SaveExisting replaces the stored set of known symbols.
	SaveExisting(ctx context.Context, symbols []string) error

	// SaveRemaining replaces the stored set of untried candidates.
	SaveRemaining(ctx context.Context, candidates []string) error
}

// Completer is implemented by checkpointers that keep state between runs
// and must forget the pending candidates once a crawl drains its queue.
type Completer interface {
	Complete(ctx context.Context) error
}

// Checkpointers fans a checkpoint out to several targets, stopping at the first error.
type Checkpointers []Checkpointer

// SaveExisting implements Checkpointer.
func (cs Checkpointers) SaveExisting(ctx context.Context, symbols []string) error {
	for _, c := range cs {
		if err := c.SaveExisting(ctx, symbols); err != nil {
			return err
		}
	}
	return nil
}

// SaveRemaining implements Checkpointer.
func (cs Checkpointers) SaveRemaining(ctx context.Context, candidates []string) error {
	for _, c := range cs {
		if err := c.SaveRemaining(ctx, candidates); err != nil {
			return err
		}
	}
	return nil
}

// Complete implements Completer for the targets that support it.
func (cs Checkpointers) Complete(ctx context.Context) error {
	for _, c := range cs {
		if done, ok := c.(Completer); ok {
			if err := done.Complete(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileCheckpointer writes checkpoints as plain text files next to the output.
type FileCheckpointer struct {
	ExistingPath  string
	RemainingPath string
}

// NewFileCheckpointer derives both checkpoint paths from the output file.
func NewFileCheckpointer(output string) *FileCheckpointer {
	return &FileCheckpointer{
		ExistingPath:  output + ExistingSuffix,
		RemainingPath: output + RemainingSuffix,
	}
}

// SaveExisting implements Checkpointer.
func (f *FileCheckpointer) SaveExisting(_ context.Context, symbols []string) error {
	return SaveSymbols(f.ExistingPath, symbols)
}

// SaveRemaining implements Checkpointer.
func (f *FileCheckpointer) SaveRemaining(_ context.Context, candidates []string) error {
	return SaveSymbols(f.RemainingPath, candidates)
}

// SaveSymbols rewrites path with one symbol per line, each followed by a
// space before the newline. The file is replaced atomically.
func SaveSymbols(path string, symbols []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, s := range symbols {
		if _, err := w.WriteString(strings.TrimSpace(s) + " \n"); err != nil {
			tmp.Close()
			return fmt.Errorf("write checkpoint: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// LoadSymbols reads a symbols file, stripping and upper-casing every line
// and skipping blank ones.
func LoadSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if s := domain.NormalizeSymbol(scanner.Text()); s != "" {
			symbols = append(symbols, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return symbols, nil
}
