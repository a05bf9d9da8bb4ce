// Package sink persists crawler and job results.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"findb/internal/domain"
)

// CSVFile appends rows to a CSV file, writing the header only when the file
// is new or empty. Every write is flushed and synced before returning.
type CSVFile struct {
	path   string
	header []string
	mu     sync.Mutex
}

// NewCSVFile creates a writer for path with the given header.
func NewCSVFile(path string, header []string) *CSVFile {
	return &CSVFile{path: path, header: header}
}

// Path returns the file path.
func (f *CSVFile) Path() string {
	return f.path
}

// WriteRows appends rows.
func (f *CSVFile) WriteRows(rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.path, err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 && len(f.header) > 0 {
		if err := w.Write(f.header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", f.path, err)
	}
	return nil
}

// CSVSink appends discovered symbols to a CSV file.
type CSVSink struct {
	file *CSVFile
}

// NewCSVSink creates a symbol sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{file: NewCSVFile(path, domain.SymbolColumns)}
}

// Path returns the output file.
func (s *CSVSink) Path() string {
	return s.file.Path()
}

// Append implements discovery.Sink.
func (s *CSVSink) Append(_ context.Context, symbols []domain.Symbol) error {
	rows := make([][]string, len(symbols))
	for i, sym := range symbols {
		rows[i] = sym.Row()
	}
	return s.file.WriteRows(rows)
}

// InfoCSVSink appends symbol info rows to a CSV file.
type InfoCSVSink struct {
	file *CSVFile
}

// NewInfoCSVSink creates an info sink writing to path.
func NewInfoCSVSink(path string) *InfoCSVSink {
	return &InfoCSVSink{file: NewCSVFile(path, domain.InfoColumns)}
}

// Path returns the output file.
func (s *InfoCSVSink) Path() string {
	return s.file.Path()
}

// AppendInfo writes infos.
func (s *InfoCSVSink) AppendInfo(_ context.Context, infos []domain.SymbolInfo) error {
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = info.Row()
	}
	return s.file.WriteRows(rows)
}
