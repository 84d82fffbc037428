package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreWatcherFiresOnSessionFileChange(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan struct{}, 4)
	sw, err := NewStoreWatcher(dir, func() { changed <- struct{}{} }, nil)
	if err != nil {
		t.Fatalf("NewStoreWatcher failed: %v", err)
	}
	sw.debounceTime = 20 * time.Millisecond

	if err := sw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sw.Stop()

	path := filepath.Join(dir, "session-100-aaa.json")
	if err := os.WriteFile(path, []byte(`{"messages":[]}`), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire for a new session file")
	}
}

func TestStoreWatcherIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan struct{}, 4)
	sw, err := NewStoreWatcher(dir, func() { changed <- struct{}{} }, nil)
	if err != nil {
		t.Fatalf("NewStoreWatcher failed: %v", err)
	}
	sw.debounceTime = 20 * time.Millisecond

	if err := sw.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sw.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case <-changed:
		t.Fatal("watcher fired for a non-session file")
	case <-time.After(200 * time.Millisecond):
	}
}
