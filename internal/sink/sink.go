package sink

import (
	"context"
	"errors"
	"fmt"

	"findb/internal/domain"
	"findb/internal/storage"
)

// SymbolSink receives newly discovered symbols.
type SymbolSink interface {
	Append(ctx context.Context, symbols []domain.Symbol) error
}

// InfoSink receives fetched symbol info.
type InfoSink interface {
	AppendInfo(ctx context.Context, infos []domain.SymbolInfo) error
}

// Importer loads a CSV file into a table; implemented by *dolt.Repo.
type Importer interface {
	TableImport(ctx context.Context, table, csvFile string) error
}

// StoreSink upserts symbols and info into a store.
type StoreSink struct {
	Symbols storage.SymbolStore
	Info    storage.InfoStore
}

// Append implements SymbolSink.
func (s *StoreSink) Append(ctx context.Context, symbols []domain.Symbol) error {
	if s.Symbols == nil {
		return fmt.Errorf("symbol store: %w", storage.ErrUnsupported)
	}
	return s.Symbols.UpsertSymbols(ctx, symbols)
}

// AppendInfo implements InfoSink.
func (s *StoreSink) AppendInfo(ctx context.Context, infos []domain.SymbolInfo) error {
	if s.Info == nil {
		return fmt.Errorf("info store: %w", storage.ErrUnsupported)
	}
	return s.Info.UpsertInfo(ctx, infos)
}

// DoltImport imports a CSV file into a dolt table. Append is a no-op; the
// import runs once on Flush so the table sees the complete file.
type DoltImport struct {
	Importer Importer
	Table    string
	File     string
}

// Append implements SymbolSink.
func (d *DoltImport) Append(context.Context, []domain.Symbol) error { return nil }

// AppendInfo implements InfoSink.
func (d *DoltImport) AppendInfo(context.Context, []domain.SymbolInfo) error { return nil }

// Flush imports the file.
func (d *DoltImport) Flush(ctx context.Context) error {
	return d.Importer.TableImport(ctx, d.Table, d.File)
}

// Flusher is implemented by sinks that finish work after the last append.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Multi writes to every sink in order, stopping at the first error.
type Multi []any

// Append implements SymbolSink for members that are SymbolSinks.
func (m Multi) Append(ctx context.Context, symbols []domain.Symbol) error {
	for _, s := range m {
		if ss, ok := s.(SymbolSink); ok {
			if err := ss.Append(ctx, symbols); err != nil {
				return err
			}
		}
	}
	return nil
}

// AppendInfo implements InfoSink for members that are InfoSinks.
func (m Multi) AppendInfo(ctx context.Context, infos []domain.SymbolInfo) error {
	for _, s := range m {
		if is, ok := s.(InfoSink); ok {
			if err := is.AppendInfo(ctx, infos); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes every member that is a Flusher and joins their errors.
func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
