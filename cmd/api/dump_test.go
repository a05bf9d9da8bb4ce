package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fin.meta.db.sqlite")
	if err := os.WriteFile(src, []byte("SQLite format 3\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "copy.sqlite")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}

	n, err := copyFile(src, dst)
	if err != nil {
		t.Fatalf("copyFile: %v", err)
	}
	if n != 16 {
		t.Errorf("copied %d bytes, want 16", n)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "SQLite format 3\x00" {
		t.Errorf("content = %q", got)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "out", "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left: %v", leftovers)
	}
}

func TestCopyFile_SameFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "fin.sqlite")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := copyFile(src, src); !errors.Is(err, errSameFile) {
		t.Fatalf("err = %v, want errSameFile", err)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := copyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfig_MissingDefault(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "conf.yml"), false)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port == 0 || cfg.Database.DSN == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "conf.yml"), true); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}
