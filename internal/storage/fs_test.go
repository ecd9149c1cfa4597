package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/checksum"
)

func tempData(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempData(t)
	content := []byte(`{"id":"lisbon","title":"Lisbon"}`)
	if err := s.Write("lisbon", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("lisbon")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "lisbon.json")); err != nil {
		t.Errorf("document not stored as lisbon.json: %v", err)
	}
}

func TestRead_MissingIsNotFound(t *testing.T) {
	s := tempData(t)
	_, err := s.Read("nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempData(t)
	_ = s.Write("del", []byte("{}"))
	if err := s.Delete("del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound reading deleted doc, got %v", err)
	}
	if err := s.Delete("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempData(t)
	_ = s.Write("a", []byte(`{"id":"a"}`))
	_ = s.Write("b", []byte(`{"id":"b"}`))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not a trip"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.Root(), "sub"), 0o755)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, m := range items {
		if m.ID == "a" && m.Checksum != checksum.Sum([]byte(`{"id":"a"}`)) {
			t.Errorf("checksum mismatch for a")
		}
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	s := tempData(t)

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
		"",
		".hidden",
	}
	for _, id := range cases {
		if _, err := s.Read(id); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Read(%q) = %v, want ErrInvalid", id, err)
		}
		if err := s.Write(id, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", id)
		}
	}
}

func TestIDFromPath(t *testing.T) {
	s := tempData(t)
	if id, ok := s.IDFromPath(filepath.Join(s.Root(), "trip-1.json")); !ok || id != "trip-1" {
		t.Errorf("IDFromPath = %q, %v", id, ok)
	}
	for _, p := range []string{
		filepath.Join(s.Root(), "sub", "trip-1.json"),
		filepath.Join(s.Root(), "trip-1.txt"),
		filepath.Join(s.Root(), ".waypoint-tmp-123"),
	} {
		if _, ok := s.IDFromPath(p); ok {
			t.Errorf("IDFromPath(%q) should be rejected", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempData(t)
	_ = s.Write("atomic", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".waypoint-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/waypoint-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "waypoint-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
