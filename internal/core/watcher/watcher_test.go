package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_RejectsNilCallback(t *testing.T) {
	w, err := New(100*time.Millisecond, ".md", nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 1)
	w, err := New(100*time.Millisecond, ".md", []string{".trash"}, []string{"*.tmp.md"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(tmpDir); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "note.md")
	os.WriteFile(testFile, []byte("hello"), 0o644)

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for file change event")
	}

	// Non-note extensions and excluded patterns never reach the callback.
	os.WriteFile(filepath.Join(tmpDir, "image.png"), []byte{1}, 0o644)
	os.WriteFile(filepath.Join(tmpDir, "draft.tmp.md"), []byte{1}, 0o644)

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			base := filepath.Base(p)
			if base == "image.png" || base == "draft.tmp.md" {
				t.Errorf("excluded file triggered event: %s", p)
			}
		}
	case <-time.After(500 * time.Millisecond):
		// Expected
	}

	// New directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "newdir")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.md")
	if err := os.WriteFile(subFile, []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(2 * time.Second)
	for !foundNested {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := New(100*time.Millisecond, ".md", nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(tmpDir); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.md")
	newPath := filepath.Join(tmpDir, "new.md")
	if err := os.WriteFile(oldPath, []byte("body"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestShouldExcludeFile(t *testing.T) {
	w, err := New(10*time.Millisecond, ".md", nil, []string{"*.bak.md"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if !w.shouldExcludeFile("main.txt") {
		t.Error("expected non-note extension to be excluded")
	}
	if w.shouldExcludeFile("note.md") {
		t.Error("expected note file to be included")
	}
	if !w.shouldExcludeFile("note.bak.md") {
		t.Error("expected pattern-excluded file to be dropped")
	}
}
