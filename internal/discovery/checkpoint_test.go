package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveSymbols_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv.existing.symbols")

	if err := SaveSymbols(path, []string{"A", "BRK.B"}); err != nil {
		t.Fatalf("SaveSymbols failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "A \nBRK.B \n" {
		t.Errorf("unexpected checkpoint bytes: %q", data)
	}
}

func TestSaveSymbols_Rewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.possible.symbols")

	SaveSymbols(path, []string{"A", "B", "C"})
	if err := SaveSymbols(path, []string{"D"}); err != nil {
		t.Fatalf("SaveSymbols failed: %v", err)
	}

	got, err := LoadSymbols(path)
	if err != nil {
		t.Fatalf("LoadSymbols failed: %v", err)
	}
	if len(got) != 1 || got[0] != "D" {
		t.Errorf("expected file to be replaced wholesale, got %v", got)
	}
}

func TestLoadSymbols_Normalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.txt")
	os.WriteFile(path, []byte("aapl \n\n  msft\r\nIBM \n"), 0o644)

	got, err := LoadSymbols(path)
	if err != nil {
		t.Fatalf("LoadSymbols failed: %v", err)
	}
	want := []string{"AAPL", "MSFT", "IBM"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFileCheckpointer_Paths(t *testing.T) {
	out := filepath.Join(t.TempDir(), "symbols.csv")
	cp := NewFileCheckpointer(out)

	if cp.ExistingPath != out+".existing.symbols" || cp.RemainingPath != out+".possible.symbols" {
		t.Fatalf("unexpected paths: %+v", cp)
	}

	ctx := context.Background()
	if err := cp.SaveExisting(ctx, []string{"A"}); err != nil {
		t.Fatalf("SaveExisting failed: %v", err)
	}
	if err := cp.SaveRemaining(ctx, []string{"B"}); err != nil {
		t.Fatalf("SaveRemaining failed: %v", err)
	}
	if _, err := os.Stat(cp.RemainingPath); err != nil {
		t.Errorf("remaining checkpoint missing: %v", err)
	}
}
