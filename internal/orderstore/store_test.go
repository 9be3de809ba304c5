package orderstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sayhar/wiki-know/internal/safeio"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "order"), 0o755); err != nil {
		t.Fatalf("mkdir order: %v", err)
	}
	fsys, err := safeio.New(root)
	if err != nil {
		t.Fatalf("safeio.New: %v", err)
	}
	return New(fsys, "order"), root
}

func TestLoadFileOrder(t *testing.T) {
	s, root := newFileStore(t)
	content := "t-one\nt-two\r\n\nt-three\n"
	if err := os.WriteFile(filepath.Join(root, "order", "curated.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ids, err := s.Load("curated")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"t-one", "t-two", "t-three"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestLoadMissingOrderIsErrNoOrder(t *testing.T) {
	s, _ := newFileStore(t)
	if _, err := s.Load("nope"); !errors.Is(err, ErrNoOrder) {
		t.Fatalf("expected ErrNoOrder, got %v", err)
	}
	if _, err := s.Load(""); !errors.Is(err, ErrNoOrder) {
		t.Fatalf("empty batch name should be ErrNoOrder, got %v", err)
	}
}

func TestNewFromEnvPrefersFilesWithoutDSN(t *testing.T) {
	t.Setenv("ORDER_PG_DSN", "")
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "order"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fsys, err := safeio.New(root)
	if err != nil {
		t.Fatalf("safeio.New: %v", err)
	}
	s := NewFromEnv(fsys, "order")
	if s.db != nil {
		t.Fatalf("expected file backend without DSN")
	}
}
