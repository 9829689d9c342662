package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestLocalStorage_SaveAndRead(t *testing.T) {
	ls, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploaded"))
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ls.now = func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) }

	name, err := ls.Save([]byte("jpeg bytes"), "IMG_0001.JPG")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !regexp.MustCompile(`^20250309_[0-9a-f]{8}\.jpg$`).MatchString(name) {
		t.Errorf("unexpected stored name %q", name)
	}

	data, err := ls.Read(name)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("unexpected content %q", data)
	}

	f, err := ls.Open(name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	if len(b) != len("jpeg bytes") {
		t.Errorf("unexpected open content length %d", len(b))
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ls, _ := NewLocalStorage(t.TempDir())
	for _, name := range []string{"../secret", "sub/file.jpg", "..", ""} {
		if _, err := ls.Read(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Read(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestLocalStorage_List(t *testing.T) {
	dir := t.TempDir()
	ls, _ := NewLocalStorage(dir)
	ls.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }

	first, _ := ls.Save([]byte("a"), "a.png")
	_ = os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0600)
	_ = os.Mkdir(filepath.Join(dir, "nested"), 0750)

	names, err := ls.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != first {
		t.Errorf("expected [%s], got %v", first, names)
	}

	if err := ls.Delete(first); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if names, _ := ls.List(); len(names) != 0 {
		t.Errorf("expected empty listing, got %v", names)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFileAtomic(dir, "doc.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(dir, "doc.json", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "doc.json"))
	if string(data) != `{"a":2}` {
		t.Errorf("unexpected content %s", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
