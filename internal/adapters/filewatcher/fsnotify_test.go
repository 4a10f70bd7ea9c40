package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()
}

func TestFSNotifyWatcher_ReportsWatchedFileWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "holdings.csv")
	if err := os.WriteFile(target, []byte("symbol\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, _ := NewFSNotifyWatcher(nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	changes, err := watcher.Watch(ctx, []string{target})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(target, []byte("symbol\nAAPL\n"), 0o644)
	}()

	select {
	case path := <-changes:
		abs, _ := filepath.Abs(target)
		if path != abs {
			t.Errorf("expected %s, got %s", abs, path)
		}
	case <-ctx.Done():
		t.Error("timeout waiting for change")
	}
}

func TestFSNotifyWatcher_IgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "holdings.csv")
	if err := os.WriteFile(target, []byte("symbol\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, _ := NewFSNotifyWatcher(nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	changes, _ := watcher.Watch(ctx, []string{target})

	// A different file in the same directory.
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)

	select {
	case path := <-changes:
		t.Errorf("should not receive event for unwatched file, got %s", path)
	case <-time.After(300 * time.Millisecond):
		// Expected - no event
	}
}

func TestFSNotifyWatcher_ChannelClosesOnCancel(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "trades.csv")
	os.WriteFile(target, []byte("symbol\n"), 0o644)

	watcher, _ := NewFSNotifyWatcher(nil)
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := watcher.Watch(ctx, []string{target})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	cancel()

	select {
	case _, open := <-changes:
		if open {
			t.Error("expected channel to close after cancel")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for channel close")
	}
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil)
	if err := watcher.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
