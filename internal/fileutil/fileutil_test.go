package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomicLeavesNoPartialFileOnError(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.mda")

	boom := errors.New("boom")
	err := WriteAtomic(dst, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("destination must not exist after failed write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicReplacesExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.cut")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(dst, []byte("new")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("unexpected content %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
}

func TestMapReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.bin")
	if err := os.WriteFile(path, []byte("ADU1payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := MapReadOnly(path)
	if err != nil {
		t.Fatalf("MapReadOnly: %v", err)
	}
	if string(m.Data[:4]) != "ADU1" {
		t.Fatalf("unexpected mapped bytes %q", m.Data[:4])
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Data != nil {
		t.Fatal("expected data cleared after close")
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	m, err = MapReadOnly(empty)
	if err != nil {
		t.Fatalf("MapReadOnly empty: %v", err)
	}
	if len(m.Data) != 0 {
		t.Fatal("expected empty mapping")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close empty: %v", err)
	}
}
