/*-------------------------------------------------------------------------
 *
 * sqlpilot - Configuration File Watcher Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// reloadCounter is a reload callback that counts invocations.
type reloadCounter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (rc *reloadCounter) reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.count++
	return rc.err
}

func (rc *reloadCounter) calls() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.count
}

func watchedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlpilot.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0600); err != nil {
		t.Fatalf("failed to create watched file: %v", err)
	}
	return path
}

func TestNewFileWatcher(t *testing.T) {
	path := watchedFile(t)
	counter := &reloadCounter{}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	defer watcher.Stop()

	if watcher.filePath != path {
		t.Errorf("filePath = %s, want %s", watcher.filePath, path)
	}
}

func TestNewFileWatcherMissingDirectory(t *testing.T) {
	if _, err := NewFileWatcher("/nonexistent/dir/sqlpilot.yaml", func() error { return nil }); err == nil {
		t.Error("NewFileWatcher() accepted a missing directory")
	}
}

func TestWatcherTriggersReloadOnWrite(t *testing.T) {
	path := watchedFile(t)
	counter := &reloadCounter{}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite watched file: %v", err)
	}

	// Allow the debounce window to elapse.
	time.Sleep(250 * time.Millisecond)
	if counter.calls() == 0 {
		t.Error("reload was not triggered by a file write")
	}
}

func TestWatcherHandlesDeleteAndRecreate(t *testing.T) {
	path := watchedFile(t)
	counter := &reloadCounter{}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	time.Sleep(50 * time.Millisecond)

	// Editors often save by deleting and recreating the file.
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove watched file: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0600); err != nil {
		t.Fatalf("failed to recreate watched file: %v", err)
	}

	time.Sleep(250 * time.Millisecond)
	if counter.calls() == 0 {
		t.Error("reload was not triggered by a recreate")
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	path := watchedFile(t)
	counter := &reloadCounter{}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("log_level: debug\n"), 0600); err != nil {
			t.Fatalf("failed to rewrite watched file: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(250 * time.Millisecond)
	got := counter.calls()
	if got == 0 {
		t.Error("no reload after rapid writes")
	}
	if got > 2 {
		t.Errorf("reload ran %d times for 5 rapid writes, want debouncing", got)
	}
}

func TestWatcherStop(t *testing.T) {
	path := watchedFile(t)
	counter := &reloadCounter{}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	watcher.Start()
	time.Sleep(50 * time.Millisecond)
	watcher.Stop()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("log_level: error\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite watched file: %v", err)
	}

	time.Sleep(250 * time.Millisecond)
	if got := counter.calls(); got > 0 {
		t.Errorf("reload ran %d times after Stop()", got)
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := watchedFile(t)
	sibling := filepath.Join(filepath.Dir(path), "other.yaml")
	counter := &reloadCounter{}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	if err := os.WriteFile(sibling, []byte("unrelated\n"), 0600); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	time.Sleep(250 * time.Millisecond)
	if got := counter.calls(); got > 0 {
		t.Errorf("reload ran %d times for a sibling file change", got)
	}
}

func TestWatcherSurvivesReloadError(t *testing.T) {
	path := watchedFile(t)
	counter := &reloadCounter{err: os.ErrPermission}

	watcher, err := NewFileWatcher(path, counter.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher() error: %v", err)
	}
	defer watcher.Stop()
	watcher.Start()

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite watched file: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	// A failing reload must not kill the watcher.
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0600); err != nil {
		t.Fatalf("failed to rewrite watched file: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	if counter.calls() < 2 {
		t.Errorf("watcher stopped after a reload error (reloads = %d)", counter.calls())
	}
}
